package httpx

import (
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Projector applies a JMESPath expression to a response body.
type Projector interface {
	Validate(expr string) error
	Project(expr string, v any) (any, error)
}

// jmespathProjector implements Projector using go-jmespath.
type jmespathProjector struct{}

func (jmespathProjector) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

// Project evaluates expr against the JSON form of v, so field names match the API output.
func (jmespathProjector) Project(expr string, v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode projection input: %w", err)
	}
	var doc any
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode projection input: %w", err)
	}
	return jmespath.Search(expr, doc)
}
