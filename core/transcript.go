package core

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// QAPair is one answered question of a guided conversation.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Transcript is stored as a JSON array.
type Transcript []QAPair

func (t Transcript) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

func (t *Transcript) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = Transcript{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("core.Transcript: cannot scan %T", src)
	}
	return json.Unmarshal(data, t)
}

// String concatenates the questions and answers, one pair per paragraph.
func (t Transcript) String() string {
	var sb strings.Builder
	for i, qa := range t {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Q: ")
		sb.WriteString(qa.Question)
		sb.WriteString("\nA: ")
		sb.WriteString(qa.Answer)
	}
	return sb.String()
}
