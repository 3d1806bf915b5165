package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	lua "github.com/yuin/gopher-lua"
)

// Tag helper functions for filter scripts

var whitespaceRegex = regexp.MustCompile(`\s+`)

// RegisterTransforms registers the helpers as pbfstream.transforms and the
// most common ones as globals
func RegisterTransforms(L *lua.LState) {
	transforms := L.NewTable()

	L.SetField(transforms, "trim", L.NewFunction(luaTrim))
	L.SetField(transforms, "lower", L.NewFunction(luaLower))
	L.SetField(transforms, "clean_spaces", L.NewFunction(luaCleanSpaces))
	L.SetField(transforms, "truncate", L.NewFunction(luaTruncate))

	L.SetField(transforms, "parse_int", L.NewFunction(luaParseInt))
	L.SetField(transforms, "parse_bool", L.NewFunction(luaParseBool))

	L.SetField(transforms, "get_name", L.NewFunction(luaGetName))
	L.SetField(transforms, "has_any", L.NewFunction(luaHasAny))
	L.SetField(transforms, "filter_tags", L.NewFunction(luaFilterTags))
	L.SetField(transforms, "tags_to_json", L.NewFunction(luaTagsToJSON))

	api, ok := L.GetGlobal("pbfstream").(*lua.LTable)
	if !ok {
		api = L.NewTable()
		L.SetGlobal("pbfstream", api)
	}
	L.SetField(api, "transforms", transforms)

	L.SetGlobal("trim", L.NewFunction(luaTrim))
	L.SetGlobal("parse_int", L.NewFunction(luaParseInt))
	L.SetGlobal("parse_bool", L.NewFunction(luaParseBool))
	L.SetGlobal("has_any", L.NewFunction(luaHasAny))
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

// luaCleanSpaces collapses whitespace runs and trims
func luaCleanSpaces(L *lua.LState) int {
	s := whitespaceRegex.ReplaceAllString(L.CheckString(1), " ")
	L.Push(lua.LString(strings.TrimSpace(s)))
	return 1
}

// luaTruncate cuts a string to at most n runes
func luaTruncate(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	if runes := []rune(s); len(runes) > n {
		s = string(runes[:max(n, 0)])
	}
	L.Push(lua.LString(s))
	return 1
}

// luaParseInt parses an integer, truncating decimals, with an optional
// default for unparsable input
func luaParseInt(L *lua.LState) int {
	s := strings.TrimSpace(L.CheckString(1))
	def := int64(0)
	if L.GetTop() >= 2 {
		def = L.CheckInt64(2)
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		L.Push(lua.LNumber(v))
	} else if f, err := strconv.ParseFloat(s, 64); err == nil {
		L.Push(lua.LNumber(int64(f)))
	} else {
		L.Push(lua.LNumber(def))
	}
	return 1
}

// luaParseBool treats yes/true/1/on as true and no/false/0/off or an
// empty string as false. Any other value counts as true.
func luaParseBool(L *lua.LState) int {
	switch strings.ToLower(strings.TrimSpace(L.CheckString(1))) {
	case "no", "false", "0", "off", "":
		L.Push(lua.LFalse)
	default:
		L.Push(lua.LTrue)
	}
	return 1
}

// luaGetName returns name, int_name or name:en, whichever is set first
func luaGetName(L *lua.LState) int {
	tags := L.CheckTable(1)
	for _, key := range []string{"name", "int_name", "name:en"} {
		if s := lua.LVAsString(tags.RawGetString(key)); s != "" {
			L.Push(lua.LString(s))
			return 1
		}
	}
	L.Push(lua.LNil)
	return 1
}

// luaHasAny reports whether tags contain any of the given keys.
// Usage: has_any(object.tags, {"highway", "railway"})
func luaHasAny(L *lua.LState) int {
	tags := L.CheckTable(1)
	keys := L.CheckTable(2)
	found := false
	keys.ForEach(func(_, k lua.LValue) {
		if !found && tags.RawGetString(lua.LVAsString(k)) != lua.LNil {
			found = true
		}
	})
	L.Push(lua.LBool(found))
	return 1
}

// luaFilterTags returns a copy of tags holding only the listed keys
func luaFilterTags(L *lua.LState) int {
	tags := L.CheckTable(1)
	keepKeys := L.CheckTable(2)

	result := L.NewTable()
	keepKeys.ForEach(func(_, k lua.LValue) {
		key := lua.LVAsString(k)
		if v := tags.RawGetString(key); v != lua.LNil {
			result.RawSetString(key, v)
		}
	})
	L.Push(result)
	return 1
}

func luaTagsToJSON(L *lua.LState) int {
	tags := L.CheckTable(1)

	m := make(map[string]string)
	tags.ForEach(func(k, v lua.LValue) {
		if key := lua.LVAsString(k); key != "" {
			m[key] = lua.LVAsString(v)
		}
	})

	b, err := json.Marshal(m)
	if err != nil {
		L.Push(lua.LString("{}"))
		return 1
	}
	L.Push(lua.LString(b))
	return 1
}
