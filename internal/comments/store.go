package comments

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/neoground/charm-blog/internal/fsutil"
	"github.com/neoground/charm-blog/internal/kv"
	"github.com/neoground/charm-blog/internal/notify"
	"github.com/neoground/charm-blog/internal/session"
)

const (
	hashKeyPrefix = "blog_post_comments_"
	blocklistKey  = "comment_ip_blocklist"

	// Sanitized messages must be longer than minMsgLen runes; anything
	// beyond maxMsgLen is truncated, not rejected.
	minMsgLen = 6
	maxMsgLen = 5000
)

// Moderation actions.
const (
	ActionApprove     = "approve"
	ActionRemove      = "remove"
	ActionRemoveBlock = "removeblock"
)

var commentAnchorRe = regexp.MustCompile(`(?i)<a\s+([^>]*?)>`)

// headingReplacer collapses all heading levels in rendered comments to a
// single low level so a comment cannot hijack the page structure.
var headingReplacer = strings.NewReplacer(
	"<h1>", "<h5>", "</h1>", "</h5>",
	"<h2>", "<h5>", "</h2>", "</h5>",
	"<h3>", "<h5>", "</h3>", "</h5>",
	"<h4>", "<h5>", "</h4>", "</h5>",
	"<h6>", "<h5>", "</h6>", "</h5>",
)

// Store manages the per-post comment hash maps in the kv store, gates
// submissions through the spam heuristics and mirrors every mutation into a
// durable YAML backup file. Mutations are serialized per post so an action
// and its backup rewrite act as one unit.
type Store struct {
	store     kv.Store
	guard     *Guard
	policy    Policy
	notifier  notify.Notifier
	backupDir string
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	md        goldmark.Markdown
	locks     sync.Map // slug -> *sync.Mutex

	// Now is the clock used for comment timestamps.
	Now func() time.Time
}

func NewStore(store kv.Store, guard *Guard, policy Policy, notifier notify.Notifier, backupDir string, logger *zap.Logger) *Store {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		store:     store,
		guard:     guard,
		policy:    policy,
		notifier:  notifier,
		backupDir: backupDir,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		md: goldmark.New(
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
		Now: time.Now,
	}
}

func hashKey(slug string) string {
	return hashKeyPrefix + slug
}

// lockSlug returns the mutex serializing mutations of one post's comment
// set. Without it an approve's fetch-then-write could resurrect a comment a
// concurrent remove just deleted.
func (s *Store) lockSlug(slug string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(slug, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Submit validates and persists a new comment. All gates must pass; the
// first failing gate rejects the submission, is logged and counts against
// the submitter's abuse counter. The caller never learns the specific
// reason. The session's anti-forgery token is consumed regardless of the
// outcome.
func (s *Store) Submit(ctx context.Context, slug string, sub Submission, sess session.Session) (Comment, bool) {
	defer sess.ClearFormToken()

	reject := func(reason string) (Comment, bool) {
		s.logger.Info("comment rejected",
			zap.String("post", slug),
			zap.String("reason", reason),
			zap.String("ip", sub.IP))
		s.guard.Record(ctx, sub.IP)
		return Comment{}, false
	}

	if sub.Honeypot != "" {
		return reject("honeypot filled")
	}

	name := strings.TrimSpace(sub.Name)
	msg := strings.TrimSpace(s.sanitizer.Sanitize(sub.Msg))
	if name == "" || msg == "" {
		return reject("missing name or message")
	}
	if utf8.RuneCountInString(msg) <= minMsgLen {
		return reject("message too short")
	}
	if runes := []rune(msg); len(runes) > maxMsgLen {
		msg = string(runes[:maxMsgLen])
	}
	if _, err := mail.ParseAddress(sub.Email); err != nil {
		return reject("invalid email address")
	}
	if sub.Token == "" || sub.Token != sess.FormToken() {
		return reject("token mismatch")
	}
	if s.policy.Suspicious(msg) {
		return reject("blocked script range")
	}
	if s.guard.Exceeded(ctx, sub.IP) {
		return reject("abuse ceiling reached")
	}

	mu := s.lockSlug(slug)
	mu.Lock()
	defer mu.Unlock()

	comment := Comment{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     sub.Email,
		Website:   strings.TrimSpace(sub.Website),
		Msg:       msg,
		CreatedAt: s.Now(),
		IP:        sub.IP,
		Approved:  false,
	}

	data, err := json.Marshal(comment)
	if err != nil {
		s.logger.Error("failed to serialize comment", zap.Error(err))
		return Comment{}, false
	}
	if err := s.store.HSet(ctx, hashKey(slug), comment.ID, string(data)); err != nil {
		s.logger.Error("failed to persist comment", zap.Error(err))
		return Comment{}, false
	}

	if err := s.backup(ctx, slug); err != nil {
		s.logger.Warn("comment backup failed", zap.String("post", slug), zap.Error(err))
	}

	if s.notifier != nil {
		subject := "New comment on " + slug
		body := fmt.Sprintf("<h2>New comment awaiting moderation</h2><p><b>%s</b> on %s</p><p>%s</p>",
			html.EscapeString(name), html.EscapeString(slug), html.EscapeString(msg))
		if err := s.notifier.Send(subject, body); err != nil {
			s.logger.Warn("comment notification failed", zap.Error(err))
		}
	}

	return comment, true
}

// List returns every comment of a post, oldest first, without display
// rendering. Used by the moderation tooling.
func (s *Store) List(ctx context.Context, slug string) ([]Comment, error) {
	raw, err := s.store.HGetAll(ctx, hashKey(slug))
	if err != nil {
		return nil, err
	}
	list := s.decode(raw)
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// ListApproved returns the approved comments of a post ready for display:
// messages rendered through the restricted markdown conversion, websites
// normalized to carry a scheme, newest first with the name as tie-break.
func (s *Store) ListApproved(ctx context.Context, slug string) ([]Comment, error) {
	raw, err := s.store.HGetAll(ctx, hashKey(slug))
	if err != nil {
		return nil, err
	}

	var result []Comment
	for _, comment := range s.decode(raw) {
		if !comment.Approved {
			continue
		}
		comment.Msg = s.renderMsg(comment.Msg)
		comment.Website = normalizeWebsite(comment.Website)
		result = append(result, comment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Moderate applies a moderation action to one comment: approve flips the
// flag, remove deletes the entry, removeblock deletes it and appends the
// commenter's IP to the blocklist. Every action rewrites the post's backup
// file. A store failure yields false without partial state visible to the
// caller.
func (s *Store) Moderate(ctx context.Context, slug, id, action string) bool {
	mu := s.lockSlug(slug)
	mu.Lock()
	defer mu.Unlock()

	key := hashKey(slug)

	switch action {
	case ActionApprove:
		comment, ok := s.fetch(ctx, key, id)
		if !ok {
			return false
		}
		comment.Approved = true
		data, err := json.Marshal(comment)
		if err != nil {
			return false
		}
		if err := s.store.HSet(ctx, key, id, string(data)); err != nil {
			s.logger.Error("failed to approve comment", zap.Error(err))
			return false
		}

	case ActionRemove:
		if _, ok := s.fetch(ctx, key, id); !ok {
			return false
		}
		if err := s.store.HDelete(ctx, key, id); err != nil {
			s.logger.Error("failed to remove comment", zap.Error(err))
			return false
		}

	case ActionRemoveBlock:
		comment, ok := s.fetch(ctx, key, id)
		if !ok {
			return false
		}
		if err := s.store.HDelete(ctx, key, id); err != nil {
			s.logger.Error("failed to remove comment", zap.Error(err))
			return false
		}
		s.blockIP(ctx, comment.IP)

	default:
		return false
	}

	if err := s.backup(ctx, slug); err != nil {
		s.logger.Warn("comment backup failed", zap.String("post", slug), zap.Error(err))
	}
	return true
}

// Blocklist returns the blocked IPs.
func (s *Store) Blocklist(ctx context.Context) []string {
	value, err := s.store.Get(ctx, blocklistKey)
	if err != nil || value == "" {
		return nil
	}
	return strings.Split(value, ";")
}

// Backup serializes the full live comment set of a post into its YAML
// backup file. An empty set skips the write, leaving any prior backup file
// in place.
func (s *Store) Backup(ctx context.Context, slug string) error {
	mu := s.lockSlug(slug)
	mu.Lock()
	defer mu.Unlock()
	return s.backup(ctx, slug)
}

func (s *Store) backup(ctx context.Context, slug string) error {
	raw, err := s.store.HGetAll(ctx, hashKey(slug))
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	list := s.decode(raw)
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})

	data, err := yaml.Marshal(list)
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(s.backupPath(slug), data, 0o644)
}

// Restore replaces the live comment set of a post with the contents of its
// backup file. Live-only comments not present in the backup are lost.
func (s *Store) Restore(ctx context.Context, slug string) error {
	mu := s.lockSlug(slug)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(s.backupPath(slug))
	if err != nil {
		return err
	}

	var list []Comment
	if err := yaml.Unmarshal(data, &list); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, hashKey(slug)); err != nil {
		return err
	}
	for _, comment := range list {
		encoded, err := json.Marshal(comment)
		if err != nil {
			return err
		}
		if err := s.store.HSet(ctx, hashKey(slug), comment.ID, string(encoded)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) backupPath(slug string) string {
	return filepath.Join(s.backupDir, slug+".yaml")
}

func (s *Store) fetch(ctx context.Context, key, id string) (Comment, bool) {
	value, err := s.store.HGet(ctx, key, id)
	if err != nil {
		if err != kv.ErrNoKey {
			s.logger.Error("comment lookup failed", zap.Error(err))
		}
		return Comment{}, false
	}
	var comment Comment
	if err := json.Unmarshal([]byte(value), &comment); err != nil {
		s.logger.Warn("discarding unreadable comment", zap.Error(err))
		return Comment{}, false
	}
	return comment, true
}

func (s *Store) decode(raw map[string]string) []Comment {
	list := make([]Comment, 0, len(raw))
	for _, value := range raw {
		var comment Comment
		if err := json.Unmarshal([]byte(value), &comment); err != nil {
			s.logger.Warn("discarding unreadable comment", zap.Error(err))
			continue
		}
		list = append(list, comment)
	}
	return list
}

func (s *Store) blockIP(ctx context.Context, ip string) {
	if ip == "" {
		return
	}
	existing, err := s.store.Get(ctx, blocklistKey)
	if err != nil && err != kv.ErrNoKey {
		s.logger.Error("blocklist lookup failed", zap.Error(err))
		return
	}
	blocklist := ip
	if existing != "" {
		blocklist = existing + ";" + ip
	}
	if err := s.store.Set(ctx, blocklistKey, blocklist); err != nil {
		s.logger.Error("failed to update blocklist", zap.Error(err))
	}
}

// renderMsg converts a comment message through the restricted markdown
// conversion: hard line breaks, headings collapsed, links forced to open in
// a new context.
func (s *Store) renderMsg(msg string) string {
	var b strings.Builder
	if err := s.md.Convert([]byte(msg), &b); err != nil {
		return html.EscapeString(msg)
	}
	out := headingReplacer.Replace(b.String())
	return commentAnchorRe.ReplaceAllString(out, `<a $1 target="_blank" rel="noopener">`)
}

func normalizeWebsite(website string) string {
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		return "https://" + website
	}
	return website
}
