package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryTopic(t *testing.T) {
	topicFor := CategoryTopic("landreg.audit")

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "compliance", payload: `{"category":"compliance","action":"land_record_closed"}`, want: "landreg.audit.compliance"},
		{name: "security", payload: `{"category":"security"}`, want: "landreg.audit.security"},
		{name: "missing category", payload: `{"action":"workflow_transition"}`, want: "landreg.audit.operations"},
		{name: "malformed payload", payload: `not json`, want: "landreg.audit.operations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, topicFor(Entry{Payload: []byte(tt.payload)}))
		})
	}
}
