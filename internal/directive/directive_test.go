package directive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/pattern"
)

func breweriesConfig() Config {
	return Config{
		Repository: "local",
		Limit:      "first",
		Offset:     "skip",
		OrderBy:    "sort",
		Distinct:   true,
	}
}

func TestResolve_AllArguments(t *testing.T) {
	args := map[string]any{
		"first": 10,
		"skip":  20,
		"sort": []any{
			map[string]any{"field": "address.city", "order": "ASC"},
			map[string]any{"field": "name"},
		},
	}

	got, err := Resolve(CUEEvaluator{}, breweriesConfig(), args)
	require.NoError(t, err)

	require.NotNil(t, got.Limit)
	require.NotNil(t, got.Offset)
	assert.Equal(t, 10, *got.Limit)
	assert.Equal(t, 20, *got.Offset)
	assert.True(t, got.Distinct)
	assert.Equal(t, []pattern.OrderSpec{
		{Field: "address.city", Order: "ASC"},
		{Field: "name"},
	}, got.OrderBy)
	assert.Empty(t, got.Subject)
}

func TestResolve_AbsentValues(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		got, err := Resolve(CUEEvaluator{}, Config{}, map[string]any{"first": 5})
		require.NoError(t, err)
		assert.Nil(t, got.Limit)
		assert.Nil(t, got.Offset)
		assert.Nil(t, got.OrderBy)
		assert.False(t, got.Distinct)
	})

	t.Run("argument is null", func(t *testing.T) {
		got, err := Resolve(CUEEvaluator{}, breweriesConfig(), map[string]any{
			"first": nil,
			"skip":  nil,
			"sort":  nil,
		})
		require.NoError(t, err)
		assert.Nil(t, got.Limit)
		assert.Nil(t, got.Offset)
		assert.Nil(t, got.OrderBy)
	})
}

func TestResolve_RangeValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{name: "limit 0", args: map[string]any{"first": 0, "skip": 0, "sort": nil}, code: compileerr.CodeLimit},
		{name: "limit -3", args: map[string]any{"first": -3, "skip": 0, "sort": nil}, code: compileerr.CodeLimit},
		{name: "offset -1", args: map[string]any{"first": 1, "skip": -1, "sort": nil}, code: compileerr.CodeOffset},
		{name: "limit 1 offset 0", args: map[string]any{"first": 1, "skip": 0, "sort": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(CUEEvaluator{}, breweriesConfig(), tt.args)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, 1, *got.Limit)
				assert.Equal(t, 0, *got.Offset)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, compileerr.ErrConstraint))
			assert.Equal(t, tt.code, compileerr.Code(err))
		})
	}
}

func TestResolve_Subject(t *testing.T) {
	cfg := Config{Subject: `"https://example.org/id/brewery/\(identifier)"`}

	got, err := Resolve(CUEEvaluator{}, cfg, map[string]any{"identifier": "123"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/id/brewery/123", got.Subject)
}

func TestResolve_OrderByShapes(t *testing.T) {
	tests := []struct {
		name string
		expr string
		args map[string]any
		want []pattern.OrderSpec
	}{
		{
			name: "single object",
			expr: "sort",
			args: map[string]any{"sort": map[string]any{"field": "name", "order": "asc"}},
			want: []pattern.OrderSpec{{Field: "name", Order: "asc"}},
		},
		{
			name: "field names",
			expr: `["name", "founded"]`,
			want: []pattern.OrderSpec{{Field: "name"}, {Field: "founded"}},
		},
		{
			name: "literal with argument",
			expr: `[{field: by, order: "desc"}]`,
			args: map[string]any{"by": "address.city"},
			want: []pattern.OrderSpec{{Field: "address.city", Order: "desc"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(CUEEvaluator{}, Config{OrderBy: tt.expr}, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.OrderBy)
		})
	}
}

func TestCUEEvaluator_Errors(t *testing.T) {
	ev := CUEEvaluator{}

	t.Run("unknown expression name", func(t *testing.T) {
		_, _, err := ev.Evaluate("having", breweriesConfig(), nil, KindInt)
		require.Error(t, err)
		assert.True(t, errors.Is(err, compileerr.ErrUnsupported))
		assert.Equal(t, compileerr.CodeUnknownDirective, compileerr.Code(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, _, err := ev.Evaluate(ArgLimit, Config{Limit: `"ten"`}, nil, KindInt)
		require.Error(t, err)
		assert.Equal(t, compileerr.CodeInvalidValue, compileerr.Code(err))
	})

	t.Run("unresolved reference", func(t *testing.T) {
		_, _, err := ev.Evaluate(ArgLimit, Config{Limit: "first"}, map[string]any{}, KindInt)
		require.Error(t, err)
		assert.Equal(t, compileerr.CodeInvalidValue, compileerr.Code(err))
	})

	t.Run("order entry without field", func(t *testing.T) {
		_, err := Resolve(ev, Config{OrderBy: `[{order: "asc"}]`}, nil)
		require.Error(t, err)
		assert.Equal(t, compileerr.CodeInvalidValue, compileerr.Code(err))
	})
}

func TestCUEEvaluator_BareArgument(t *testing.T) {
	args := map[string]any{"first": 0, "skip": -1, "id": "b1", "flag": true}

	v, ok, err := CUEEvaluator{}.Evaluate(ArgLimit, Config{Limit: "first"}, args, KindInt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, v)

	v, _, err = CUEEvaluator{}.Evaluate(ArgOffset, Config{Offset: "skip"}, args, KindInt)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	v, _, err = CUEEvaluator{}.Evaluate(ArgSubject, Config{Subject: `"https://example.org/id/\(id)"`}, args, KindString)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/id/b1", v)

	_, err = Resolve(CUEEvaluator{}, Config{Limit: "first", Offset: "skip"}, args)
	require.Error(t, err)
	assert.Equal(t, compileerr.CodeLimit, compileerr.Code(err))
}

func TestCUEEvaluator_Arithmetic(t *testing.T) {
	v, ok, err := CUEEvaluator{}.Evaluate(ArgOffset, Config{Offset: "(page - 1) * size"},
		map[string]any{"page": 3, "size": 25}, KindInt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50, v)
}

func TestNormalize(t *testing.T) {
	in := map[string]any{
		"first": 10.0,
		"ratio": 0.5,
		"list":  []any{1.0, "x"},
	}
	got := Normalize(in).(map[string]any)

	assert.Equal(t, int64(10), got["first"])
	assert.Equal(t, 0.5, got["ratio"])
	assert.Equal(t, []any{int64(1), "x"}, got["list"])
	assert.Equal(t, 10.0, in["first"], "input is not mutated")
}
