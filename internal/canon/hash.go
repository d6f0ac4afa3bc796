package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/shapeql/internal/pattern"
	"github.com/roach88/shapeql/internal/querysparql"
)

// Domain prefixes for fingerprints. The version suffix allows the encoding
// to change without colliding with old hashes.
const (
	DomainRequest   = "shapeql/request/v1"
	DomainQuery     = "shapeql/query/v1"
	DomainVariables = "shapeql/variables/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestValue returns req as a canonical-JSON-ready value.
func RequestValue(req querysparql.Request) map[string]any {
	filters := make([]any, len(req.Filters))
	for i, f := range req.Filters {
		path := make([]any, len(f.Path))
		for j, p := range f.Path {
			path[j] = p
		}
		filters[i] = map[string]any{"path": path, "operator": f.Operator, "value": f.Value}
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	d := req.Directive
	return map[string]any{
		"field":     req.Field,
		"type":      req.TypeName,
		"selection": selectionValue(req.Selection),
		"arguments": args,
		"directive": map[string]any{
			"repository": d.Repository,
			"subject":    d.Subject,
			"limit":      d.Limit,
			"offset":     d.Offset,
			"orderBy":    d.OrderBy,
			"distinct":   d.Distinct,
		},
		"filters": filters,
	}
}

// selectionValue keeps selection order; it is part of the rendered output.
func selectionValue(fields []*pattern.Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = map[string]any{"name": f.Name, "selection": selectionValue(f.Selection)}
	}
	return out
}

// RequestHash fingerprints a compile request.
func RequestHash(req querysparql.Request) (string, error) {
	data, err := Marshal(RequestValue(req))
	if err != nil {
		return "", fmt.Errorf("RequestHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRequest, data), nil
}

// QueryHash fingerprints a compiled query string.
func QueryHash(query string) string {
	return hashWithDomain(DomainQuery, []byte(query))
}

// VariablesHash fingerprints operation variables.
func VariablesHash(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("VariablesHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainVariables, data), nil
}

// MustRequestHash is like RequestHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRequestHash(req querysparql.Request) string {
	h, err := RequestHash(req)
	if err != nil {
		panic(err)
	}
	return h
}
