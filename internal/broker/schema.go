package broker

import "strconv"

// Schema describes one log channel / live topic (spec.md §3).
type Schema struct {
	Topic      string                 `json:"topic"`
	DtypeName  string                 `json:"dtype_name"`
	Properties map[string]interface{} `json:"properties"`
}

// WithDefaults fills Topic/DtypeName from moduleName/index when unset,
// matching spec.md §3 ("Topic defaults to the module name; dtype_name
// defaults to "<type>_<index>"").
func (s Schema) WithDefaults(moduleName, moduleType string, index int) Schema {
	if s.Topic == "" {
		s.Topic = moduleName
	}
	if s.DtypeName == "" {
		s.DtypeName = moduleType + "_" + strconv.Itoa(index)
	}
	return s
}
