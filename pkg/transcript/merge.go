package transcript

// DeepMerge merges src into dst and returns the result. Nested maps are
// merged recursively; scalars and arrays are last-write-wins. dst is not
// modified; the returned map is a fresh copy, so previously merged fields
// survive every subsequent delivery.
func DeepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := out[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			out[k] = DeepMerge(dstMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}
