// Package script runs user Lua filters over converted ways.
//
// A script defines a global filter_way(way) returning true to keep the way.
// The way table carries id, nodes, tags, points ({lon, lat} pairs),
// is_closed and length (meters), plus a grab_tag(key) helper.
package script

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geo"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/ways"
)

// FilterFunc is the global a script must define
const FilterFunc = "filter_way"

// ErrNoFilter is returned when a loaded script does not define filter_way
var ErrNoFilter = errors.New("script does not define " + FilterFunc)

// Runtime wraps a Lua state holding a loaded filter script.
// A Runtime is safe for concurrent use; calls are serialized.
type Runtime struct {
	L      *lua.LState
	filter lua.LValue
	log    *zap.Logger
	mu     sync.Mutex
}

// NewRuntime creates a Lua state with the standard libraries and helpers
func NewRuntime() *Runtime {
	r := &Runtime{
		L:   lua.NewState(),
		log: logger.Get().Named("lua"),
	}
	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

func (r *Runtime) registerAPI() {
	r.L.SetGlobal("print", r.L.NewFunction(r.luaPrint))
	r.L.SetGlobal("tags_to_json", r.L.NewFunction(luaTagsToJSON))
	r.L.SetGlobal("trim", r.L.NewFunction(luaTrim))
}

// LoadFile loads and executes a Lua filter file
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	return r.extractFilter()
}

// LoadString loads and executes Lua code from a string
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	return r.extractFilter()
}

func (r *Runtime) extractFilter() error {
	fn := r.L.GetGlobal(FilterFunc)
	if fn.Type() != lua.LTFunction {
		return ErrNoFilter
	}
	r.filter = fn
	return nil
}

// Keep calls filter_way for a row. Any value other than nil or false keeps
// the way. Keep satisfies ways.KeepFunc.
func (r *Runtime) Keep(row ways.Row, tags map[string]string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filter == nil {
		return false, ErrNoFilter
	}

	if err := r.L.CallByParam(lua.P{
		Fn:      r.filter,
		NRet:    1,
		Protect: true,
	}, r.wayToLua(row, tags)); err != nil {
		return false, fmt.Errorf("lua callback error: %w", err)
	}

	ret := r.L.Get(-1)
	r.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// wayToLua converts a row and its tags to a Lua table
func (r *Runtime) wayToLua(row ways.Row, tags map[string]string) *lua.LTable {
	L := r.L
	tbl := L.NewTable()

	tbl.RawSetString("id", lua.LNumber(row.ID))

	tagTbl := L.NewTable()
	for k, v := range tags {
		tagTbl.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("tags", tagTbl)

	nodes := L.NewTable()
	for i, id := range row.NodeIDs {
		nodes.RawSetInt(i+1, lua.LNumber(id))
	}
	tbl.RawSetString("nodes", nodes)

	points := L.NewTable()
	for i, p := range row.Geometry {
		pt := L.NewTable()
		pt.RawSetInt(1, lua.LNumber(p[0]))
		pt.RawSetInt(2, lua.LNumber(p[1]))
		points.RawSetInt(i+1, pt)
	}
	tbl.RawSetString("points", points)

	closed := len(row.Geometry) > 2 && row.Geometry[0].Equal(row.Geometry[len(row.Geometry)-1])
	tbl.RawSetString("is_closed", lua.LBool(closed))
	tbl.RawSetString("length", lua.LNumber(geo.Length(row.Geometry)))

	L.SetField(tbl, "grab_tag", L.NewFunction(func(L *lua.LState) int {
		if v, ok := tags[L.CheckString(1)]; ok {
			L.Push(lua.LString(v))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	return tbl
}

// luaPrint sends script output to the log
func (r *Runtime) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.log.Info(strings.Join(parts, "\t"))
	return 0
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

// luaTagsToJSON encodes a flat Lua table as a JSON object
func luaTagsToJSON(L *lua.LState) int {
	tbl := L.CheckTable(1)
	m := make(map[string]string)
	tbl.ForEach(func(k, v lua.LValue) {
		m[k.String()] = v.String()
	})
	b, err := json.Marshal(m)
	if err != nil {
		L.RaiseError("tags_to_json: %v", err)
		return 0
	}
	L.Push(lua.LString(b))
	return 1
}
