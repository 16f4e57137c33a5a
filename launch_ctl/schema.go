package launch_ctl

import "github.com/invopop/jsonschema"

// TuningSchema describes the tuning file accepted by LoadTuning and
// TuningStore.Reload.
func TuningSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(new(TuningParameters))
	schema.Title = "Launch Control Tuning"
	schema.Description = "Geometry, limits and controller gains for the launch core"
	return schema
}
