package platform

import "encoding/json"

// DecodeConfig decodes the open platform config bag into an adapter's typed
// config struct. Adapters call this at the boundary so untyped access never
// propagates inward.
func DecodeConfig(config map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
