package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListParams(t *testing.T) {
	lp := parseListParams(url.Values{})
	assert.Equal(t, 50, lp.Limit)
	assert.Equal(t, 0, lp.Offset)
	assert.Empty(t, lp.Sort)
	assert.Equal(t, "last", lp.Nulls)

	lp = parseListParams(url.Values{
		"_limit":  {"10"},
		"_offset": {"20"},
		"_sort":   {"-score, title ,+name"},
		"nulls":   {"FIRST"},
	})
	assert.Equal(t, 10, lp.Limit)
	assert.Equal(t, 20, lp.Offset)
	assert.Equal(t, []SortKey{{Field: "score", Desc: true}, {Field: "title"}, {Field: "name"}}, lp.Sort)
	assert.Equal(t, "first", lp.Nulls)

	// неподдержанные значения откатываются к дефолтам
	lp = parseListParams(url.Values{"_limit": {"99999"}, "_offset": {"-5"}, "nulls": {"middle"}})
	assert.Equal(t, 50, lp.Limit)
	assert.Equal(t, 0, lp.Offset)
	assert.Equal(t, "last", lp.Nulls)

	// limit/offset без подчёркивания тоже понимаются
	lp = parseListParams(url.Values{"limit": {"5"}, "offset": {"1"}})
	assert.Equal(t, 5, lp.Limit)
	assert.Equal(t, 1, lp.Offset)
}
