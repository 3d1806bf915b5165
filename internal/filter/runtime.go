package filter

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/pbfstream/internal/pbf"
)

// Version is exposed to scripts as pbfstream.version.
const Version = "1.0.0"

// Runtime runs a Lua filter script against decoded entities.
//
// Scripts define any of pbfstream.process_node, pbfstream.process_way and
// pbfstream.process_relation. Each receives the entity as a table and
// returns false to drop it. Changes the script makes to object.tags are
// written back to the entity. A Runtime is not safe for concurrent use.
type Runtime struct {
	L   *lua.LState
	log *zap.Logger

	processNode     lua.LValue
	processWay      lua.LValue
	processRelation lua.LValue
}

// NewRuntime creates a Lua state with the pbfstream API registered
func NewRuntime(log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runtime{L: lua.NewState(), log: log}
	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

func (r *Runtime) registerAPI() {
	api := r.L.NewTable()
	api.RawSetString("version", lua.LString(Version))
	r.L.SetGlobal("pbfstream", api)

	RegisterTransforms(r.L)

	r.L.SetGlobal("print", r.L.NewFunction(r.luaPrint))
}

// LoadFile loads and executes a Lua filter script
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	return r.extractCallbacks()
}

// LoadString loads and executes Lua code from a string
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	return r.extractCallbacks()
}

func (r *Runtime) extractCallbacks() error {
	api, ok := r.L.GetGlobal("pbfstream").(*lua.LTable)
	if !ok {
		return fmt.Errorf("script replaced the pbfstream table")
	}
	r.processNode = callback(api, "process_node")
	r.processWay = callback(api, "process_way")
	r.processRelation = callback(api, "process_relation")
	return nil
}

func callback(api *lua.LTable, name string) lua.LValue {
	fn := api.RawGetString(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	return fn
}

// HasCallbacks reports whether the script defines any process function
func (r *Runtime) HasCallbacks() bool {
	return r.processNode != nil || r.processWay != nil || r.processRelation != nil
}

// Keep runs the callback for e's kind. Entities of a kind without a
// callback are kept unchanged.
func (r *Runtime) Keep(e pbf.Entity) (bool, error) {
	var fn lua.LValue
	switch e.Type() {
	case pbf.TypeNode:
		fn = r.processNode
	case pbf.TypeWay:
		fn = r.processWay
	case pbf.TypeRelation:
		fn = r.processRelation
	}
	if fn == nil {
		return true, nil
	}

	obj := r.entityToLua(e)
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, obj); err != nil {
		return false, fmt.Errorf("lua callback error for %s %d: %w", e.Type(), e.EntityID(), err)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)

	if ret == lua.LFalse {
		return false, nil
	}
	setTags(e, tagsFromLua(obj.RawGetString("tags")))
	return true, nil
}

// entityToLua converts an entity to the table passed to callbacks
func (r *Runtime) entityToLua(e pbf.Entity) *lua.LTable {
	L := r.L
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LNumber(e.EntityID()))
	tbl.RawSetString("type", lua.LString(e.Type().String()))

	tags := L.NewTable()
	for k, v := range e.EntityTags() {
		tags.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("tags", tags)

	if info := e.EntityInfo(); info != nil {
		tbl.RawSetString("version", lua.LNumber(info.Version))
		tbl.RawSetString("timestamp", lua.LNumber(info.Timestamp/1000))
		tbl.RawSetString("changeset", lua.LNumber(info.Changeset))
		tbl.RawSetString("uid", lua.LNumber(info.UID))
		tbl.RawSetString("user", lua.LString(info.User))
		if info.Visible != nil {
			tbl.RawSetString("visible", lua.LBool(*info.Visible))
		}
	}

	switch v := e.(type) {
	case *pbf.Node:
		tbl.RawSetString("lat", lua.LNumber(v.Lat))
		tbl.RawSetString("lon", lua.LNumber(v.Lon))
	case *pbf.Way:
		nodes := L.NewTable()
		for i, ref := range v.Refs {
			nodes.RawSetInt(i+1, lua.LNumber(ref))
		}
		tbl.RawSetString("nodes", nodes)
		closed := len(v.Refs) > 2 && v.Refs[0] == v.Refs[len(v.Refs)-1]
		tbl.RawSetString("is_closed", lua.LBool(closed))
	case *pbf.Relation:
		members := L.NewTable()
		for i, m := range v.Members {
			mt := L.NewTable()
			mt.RawSetString("type", lua.LString(m.Type.String()))
			mt.RawSetString("ref", lua.LNumber(m.ID))
			mt.RawSetString("role", lua.LString(m.Role))
			members.RawSetInt(i+1, mt)
		}
		tbl.RawSetString("members", members)
	}

	L.SetField(tbl, "grab_tag", L.NewFunction(grabTag(tags)))
	return tbl
}

// grabTag implements object:grab_tag(key), which returns a tag value and
// removes it from object.tags
func grabTag(tags *lua.LTable) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(2)
		val := tags.RawGetString(key)
		tags.RawSetString(key, lua.LNil)
		L.Push(val)
		return 1
	}
}

func tagsFromLua(v lua.LValue) pbf.Tags {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var tags pbf.Tags
	tbl.ForEach(func(k, v lua.LValue) {
		if k.Type() != lua.LTString || v == lua.LNil {
			return
		}
		if tags == nil {
			tags = make(pbf.Tags)
		}
		tags[string(k.(lua.LString))] = lua.LVAsString(v)
	})
	return tags
}

func setTags(e pbf.Entity, tags pbf.Tags) {
	switch v := e.(type) {
	case *pbf.Node:
		v.Tags = tags
	case *pbf.Way:
		v.Tags = tags
	case *pbf.Relation:
		v.Tags = tags
	}
}

// luaPrint routes print() to the logger
func (r *Runtime) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.log.Info(strings.Join(parts, "\t"), zap.String("source", "lua"))
	return 0
}
