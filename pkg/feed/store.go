package feed

import (
	"fmt"
	"log/slog"
	"sync"
)

// Persister saves the full post list after every store mutation. Failures
// are logged and swallowed: the in-memory state stays authoritative for
// the session.
type Persister interface {
	Save(posts []Post) error
}

// StoreConfig holds the configuration for a Store.
type StoreConfig struct {
	Logger    *slog.Logger
	Persister Persister
	Initial   []Post
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Store is the single shared mutable resource of the pipeline. All
// mutation goes through append and patch operations that locate entities
// by id, never by index, so interleaved operations on distinct entities
// cannot clobber each other.
type Store struct {
	log       *slog.Logger
	persister Persister

	mu    sync.Mutex
	posts []Post
}

// NewStore creates a Store seeded with cfg.Initial.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}
	return &Store{
		log:       cfg.Logger,
		persister: cfg.Persister,
		posts:     append([]Post(nil), cfg.Initial...),
	}, nil
}

// Append adds a post at the head of the list, replacing any existing post
// with the same id.
func (s *Store) Append(post Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Post, 0, len(s.posts)+1)
	next = append(next, post)
	for _, p := range s.posts {
		if p.ID != post.ID {
			next = append(next, p)
		}
	}
	s.posts = next
	s.persistLocked()
}

// Patch applies fn to the post with the given id under the store lock and
// persists the result. Returns false if no such post exists.
func (s *Store) Patch(id string, fn func(*Post)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.posts {
		if s.posts[i].ID == id {
			fn(&s.posts[i])
			s.persistLocked()
			return true
		}
	}
	return false
}

// AppendReply appends a reply to the post's thread in creation order.
func (s *Store) AppendReply(postID string, reply Reply) bool {
	return s.Patch(postID, func(p *Post) {
		p.Replies = append(p.Replies, reply)
	})
}

// PatchReply applies fn to one reply of one post. Returns false if either
// the post or the reply does not exist.
func (s *Store) PatchReply(postID, replyID string, fn func(*Reply)) bool {
	found := false
	s.Patch(postID, func(p *Post) {
		for i := range p.Replies {
			if p.Replies[i].ID == replyID {
				fn(&p.Replies[i])
				found = true
				return
			}
		}
	})
	return found
}

// Get returns a copy of the post with the given id.
func (s *Store) Get(id string) (Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.posts {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return Post{}, false
}

// List returns a copy of all posts, newest first.
func (s *Store) List() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p.clone())
	}
	return out
}

// Remove deletes the post with the given id. Returns false if absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.posts {
		if p.ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

// persistLocked writes the current list through the persister. Must be
// called with s.mu held so the snapshot is the latest committed state.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	snapshot := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		snapshot = append(snapshot, p.clone())
	}
	if err := s.persister.Save(snapshot); err != nil {
		s.log.Warn("failed to persist posts", "count", len(snapshot), "error", err)
	}
}
