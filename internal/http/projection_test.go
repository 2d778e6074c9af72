package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/redis-bulk-actions/internal/domain/model"
)

func TestJMESPathProjector(t *testing.T) {
	ov := model.Overview{
		ID:      "a",
		Status:  model.StatusFailed,
		Summary: model.SummaryOverview{Errors: []model.ItemError{{Key: "k1", Error: "WRONGTYPE"}, {Key: "k2", Error: "OOM"}}},
	}
	p := jmespathProjector{}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{name: "scalar", expr: "status", want: "failed"},
		{name: "camel case field names", expr: "databaseId", want: ""},
		{name: "list projection", expr: "summary.errors[*].key", want: []any{"k1", "k2"}},
		{name: "filter", expr: "summary.errors[?error=='OOM'].key | [0]", want: "k2"},
		{name: "missing field", expr: "nope", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, p.Validate(tt.expr))
			got, err := p.Project(tt.expr, ov)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJMESPathProjectorValidate(t *testing.T) {
	p := jmespathProjector{}
	assert.NoError(t, p.Validate(""))
	assert.NoError(t, p.Validate("   "))
	assert.Error(t, p.Validate("summary.["))
	assert.Error(t, p.Validate("foo]"))
}
