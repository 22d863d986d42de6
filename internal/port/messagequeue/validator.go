package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/TuneForge/internal/domain/event"
)

// Validate checks that data is valid JSON and, for event subjects, that it
// decodes into an event whose type matches the subject. Other subjects only
// need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}
	if !strings.HasPrefix(subject, event.SubjectPrefix) {
		return nil
	}

	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if ev.Type == "" {
		return fmt.Errorf("schema validation failed for %s: missing type", subject)
	}
	if ev.Subject() != subject {
		return fmt.Errorf("schema validation failed for %s: type %q does not match subject", subject, ev.Type)
	}
	return nil
}
