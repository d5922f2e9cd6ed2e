package dispatchsvc

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/jdertmann/herald/internal/eventlog"
)

// Filter wraps a compiled CEL program evaluated against log entries before
// delivery. An empty expression matches everything.
type Filter struct {
	prog    cel.Program
	enabled bool
}

var (
	filterCacheMu sync.Mutex
	filterCache   = map[string]Filter{}
)

// CompileFilter parses and checks a destination filter expression. Compiled
// programs are cached per expression.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}

	filterCacheMu.Lock()
	cached, ok := filterCache[expr]
	filterCacheMu.Unlock()
	if ok {
		return cached, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("epoch", cel.IntType),
		cel.Variable("seq", cel.IntType),
		cel.Variable("dedup_key", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}

	f := Filter{prog: prog, enabled: true}
	filterCacheMu.Lock()
	filterCache[expr] = f
	filterCacheMu.Unlock()
	return f, nil
}

// Eval evaluates the filter against an entry. When disabled, returns true.
// Evaluation errors count as no-match.
func (f Filter) Eval(e eventlog.Entry) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(e.Payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"epoch":     int64(e.ID.Epoch),
		"seq":       int64(e.ID.Seq),
		"dedup_key": e.DedupKey,
		"size":      int64(len(e.Payload)),
		"text":      string(e.Payload),
		"json":      jsonObj,
		"now_ms":    time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
