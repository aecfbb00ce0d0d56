// Package audit records who did what to which resource, off the request's
// critical path.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/infrastructure/metrics"
)

const (
	saveTimeout  = 5 * time.Second
	maxDetailLen = 2048
)

// redactedFields never make it into an audit detail payload.
var redactedFields = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"authorization": {},
	"api_key":       {},
}

// Entry is one audit record.
type Entry struct {
	RequestID    string
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Method       string
	Path         string
	Status       int
	Outcome      string
	Detail       string
	CreatedAt    time.Time
}

// Repository persists audit entries.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}

// Logger writes audit entries asynchronously. A persistence failure is logged
// and counted but never surfaces to the request that produced the entry.
type Logger struct {
	repo Repository
	wg   sync.WaitGroup
	now  func() time.Time
}

func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// Record queues the entry for persistence and returns immediately.
func (l *Logger) Record(entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	entry.Detail = SanitizeDetail([]byte(entry.Detail))

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := l.repo.Save(ctx, &entry); err != nil {
			metrics.AuditEntriesTotal.WithLabelValues("failure").Inc()
			log := logger.GetLogger()
			log.Error().
				Err(err).
				Str("request_id", entry.RequestID).
				Str("action", entry.Action).
				Msg("failed to persist audit entry")
			return
		}
		metrics.AuditEntriesTotal.WithLabelValues("success").Inc()
	}()
}

// Flush waits for every queued entry to finish persisting. Used on shutdown
// and in tests.
func (l *Logger) Flush() {
	l.wg.Wait()
}

// DescribeRequest derives the audit action and resource from the request
// line, e.g. POST /v1/conversations/conv_1/branch becomes action
// "conversation.branch" on resource conversation/conv_1.
func DescribeRequest(method, path string) (action, resourceType, resourceID string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	// Drop the API version prefix.
	if len(segments) > 0 && strings.HasPrefix(segments[0], "v") && len(segments[0]) <= 3 {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return strings.ToLower(method), "", ""
	}

	resourceType = singular(segments[0])
	if len(segments) > 1 {
		resourceID = segments[1]
	}
	verb := methodVerb(method)

	// Message routes are nested under a conversation.
	if len(segments) > 2 && segments[2] == "messages" {
		resourceType = "message"
		resourceID = ""
		if len(segments) > 3 {
			resourceID = segments[3]
		}
		switch {
		case len(segments) > 4:
			verb = segments[4]
		case len(segments) == 3 && method == "POST":
			verb = "send"
		case len(segments) == 3:
			verb = "list"
		}
		return resourceType + "." + verb, resourceType, resourceID
	}

	// Sub-action routes like .../archive or .../branch.
	if len(segments) == 3 {
		verb = segments[2]
	}
	return resourceType + "." + verb, resourceType, resourceID
}

func singular(s string) string {
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return strings.TrimSuffix(s, "s")
	}
	return s
}

func methodVerb(method string) string {
	switch method {
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return "read"
	}
}

// SanitizeDetail strips sensitive fields from a JSON detail payload and caps
// its size. Non-JSON input is kept as-is up to the cap.
func SanitizeDetail(detail []byte) string {
	if len(detail) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(detail, &fields); err != nil {
		return truncate(string(detail))
	}
	for key := range fields {
		if _, sensitive := redactedFields[strings.ToLower(key)]; sensitive {
			fields[key] = json.RawMessage(`"[REDACTED]"`)
		}
	}
	sanitized, err := json.Marshal(fields)
	if err != nil {
		return truncate(string(detail))
	}
	return truncate(string(sanitized))
}

func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen]
}
