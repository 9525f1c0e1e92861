package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"experience", KindExperience},
		{"EXPERIENCE", KindExperience},
		{" skill ", KindSkill},
		{"manual", KindSkill},
		{"Manual", KindSkill},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	_, err := ParseKind("playbook")
	assert.Error(t, err)
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindExperience.Valid())
	assert.True(t, KindSkill.Valid())
	assert.False(t, Kind("manual").Valid())
	assert.False(t, Kind("").Valid())
}

func TestNewRecordDefaults(t *testing.T) {
	r := New("exp-1", KindExperience, "Title", "Body")

	assert.Equal(t, "exp-1", r.ID())
	assert.Equal(t, KindExperience, r.Kind())
	assert.Equal(t, StatusPending, r.EmbeddingStatus())
	assert.False(t, r.CreatedAt().IsZero())
	assert.Equal(t, r.CreatedAt(), r.UpdatedAt())
}

func TestRecordWithCopies(t *testing.T) {
	base := New("sk-1", KindSkill, "Title", "Body")
	modified := base.WithSummary("short summary").WithCategory("infra").WithAuthor("ada")

	assert.Empty(t, base.Summary())
	assert.Equal(t, "short summary", modified.Summary())
	assert.Equal(t, "infra", modified.CategoryCode())
	assert.Equal(t, "ada", modified.Author())
}

func TestEmbeddingText(t *testing.T) {
	exp := New("exp-1", KindExperience, "Fix flaky test", "Pin the clock in setup.")
	assert.Equal(t, "Fix flaky test\n\nPin the clock in setup.", exp.EmbeddingText())

	skill := New("sk-1", KindSkill, "Profiling", "Use pprof on a live service.").
		WithSummary("CPU and heap profiling basics")
	assert.Equal(t, "Profiling\n\nCPU and heap profiling basics\n\nUse pprof on a live service.", skill.EmbeddingText())

	// Skill summary is skipped for experiences.
	expWithSummary := exp.WithSummary("ignored")
	assert.Equal(t, "Fix flaky test\n\nPin the clock in setup.", expWithSummary.EmbeddingText())
}

func TestRerankDocument(t *testing.T) {
	exp := New("exp-1", KindExperience, "Fix flaky test", "Pin the clock in setup.")
	assert.Equal(t, "Fix flaky test\n\nPin the clock in setup.", exp.RerankDocument())

	skill := New("sk-1", KindSkill, "Profiling", "Use pprof on a live service.")
	assert.Equal(t, "Use pprof on a live service.", skill.RerankDocument())

	emptyBody := New("sk-2", KindSkill, "Profiling", "  ")
	assert.Equal(t, "Profiling", emptyBody.RerankDocument())
}
