package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	t.Run("nested maps merge recursively", func(t *testing.T) {
		dst := map[string]interface{}{
			"data": map[string]interface{}{
				"bot_id": "b1",
				"status": map[string]interface{}{"code": "joining"},
			},
		}
		src := map[string]interface{}{
			"data": map[string]interface{}{
				"status": map[string]interface{}{"code": "done", "sub_code": "ok"},
			},
		}

		out := DeepMerge(dst, src)

		data := out["data"].(map[string]interface{})
		assert.Equal(t, "b1", data["bot_id"], "earlier fields must survive")
		status := data["status"].(map[string]interface{})
		assert.Equal(t, "done", status["code"])
		assert.Equal(t, "ok", status["sub_code"])
	})

	t.Run("scalars and arrays are last-write-wins", func(t *testing.T) {
		dst := map[string]interface{}{"event": "first", "words": []interface{}{"a"}}
		src := map[string]interface{}{"event": "second", "words": []interface{}{"b", "c"}}

		out := DeepMerge(dst, src)

		assert.Equal(t, "second", out["event"])
		assert.Equal(t, []interface{}{"b", "c"}, out["words"])
	})

	t.Run("type conflict takes the incoming value", func(t *testing.T) {
		dst := map[string]interface{}{"status": map[string]interface{}{"code": "joining"}}
		src := map[string]interface{}{"status": "done"}

		out := DeepMerge(dst, src)
		assert.Equal(t, "done", out["status"])
	})

	t.Run("destination is not modified", func(t *testing.T) {
		dst := map[string]interface{}{"keep": "original"}
		out := DeepMerge(dst, map[string]interface{}{"keep": "replaced"})

		assert.Equal(t, "original", dst["keep"])
		assert.Equal(t, "replaced", out["keep"])
	})
}
