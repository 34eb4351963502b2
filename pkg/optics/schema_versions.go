package optics

import (
	"fmt"
	"sort"

	"mctoptics/pkg/epics"
)

// The upstream IOC support carries near-duplicate copies of the optics
// device tree that have drifted independently. Each copy is kept as its
// own versioned schema and selected by configuration; they are never
// merged, so a divergence in one copy cannot silently leak into setups
// running the other.

func lensOffsetSchema() *epics.Schema {
	return &epics.Schema{
		Fields: map[string]epics.Field{
			"XOffset":  {Suffix: "XOffset"},
			"YOffset":  {Suffix: "YOffset"},
			"ZOffset":  {Suffix: "ZOffset"},
			"Rotation": {Suffix: "Rotation"},
			"Focus":    {Suffix: "Focus"},
		},
	}
}

func lensControlSchema() *epics.Schema {
	return &epics.Schema{
		Fields: map[string]epics.Field{
			"Pos0": {Suffix: "Pos0"},
			"Pos1": {Suffix: "Pos1"},
			"Pos2": {Suffix: "Pos2"},
		},
		Groups: map[string]epics.Group{
			"Lens1": {Suffix: "1", Schema: lensOffsetSchema()},
			"Lens2": {Suffix: "2", Schema: lensOffsetSchema()},
		},
	}
}

func cameraControlSchema() *epics.Schema {
	return &epics.Schema{
		Fields: map[string]epics.Field{
			"RotationName": {Suffix: "RotationPVName"},
		},
		Formatted: map[string]epics.FormattedField{
			"Pos":    {Token: "Pos"},
			"PVName": {Token: "Name"},
		},
		Groups: map[string]epics.Group{
			"LensCtrl": {Suffix: "Lens", Schema: lensControlSchema()},
		},
	}
}

func lensInfoSchema() *epics.Schema {
	return &epics.Schema{
		Fields: map[string]epics.Field{
			"Name0": {Suffix: "Name0"},
			"Name1": {Suffix: "Name1"},
			"Name2": {Suffix: "Name2"},

			"MotorName":   {Suffix: "MotorPVName"},
			"SampleXName": {Suffix: "SampleXPVName"},
			"SampleYName": {Suffix: "SampleYPVName"},
			"SampleZName": {Suffix: "SampleZPVName"},

			"FocusName0": {Suffix: "0FocusPVName"},
			"FocusName1": {Suffix: "1FocusPVName"},
			"FocusName2": {Suffix: "2FocusPVName"},
		},
	}
}

func opticsSchema(version string) *epics.Schema {
	return &epics.Schema{
		Version: version,
		Fields: map[string]epics.Field{
			"LensSelect":     {Suffix: "LensSelect"},
			"CameraSelect":   {Suffix: "CameraSelect"},
			"CameraSelected": {Suffix: "CameraSelected", Access: epics.ReadOnly, AsString: true},

			"CrossSelect":   {Suffix: "CrossSelect"},
			"Sync":          {Suffix: "Sync", AsString: true},
			"ServerRunning": {Suffix: "ServerRunning", AsString: true},
			"MCTStatus":     {Suffix: "MCTStatus", AsString: true},

			"ScintillatorType":      {Suffix: "ScintillatorType"},
			"ScintillatorThickness": {Suffix: "ScintillatorThickness"},

			"ImagePixelSize":    {Suffix: "ImagePixelSize"},
			"DetectorPixelSize": {Suffix: "DetectorPixelSize"},

			"CameraObjective":  {Suffix: "CameraObjective"},
			"CameraTubeLength": {Suffix: "CameraTubeLength"},
		},
		Groups: map[string]epics.Group{
			"LensInfo": {Suffix: "Lens", Schema: lensInfoSchema()},
			"Camera0":  {Suffix: "Camera0", Schema: cameraControlSchema()},
			"Camera1":  {Suffix: "Camera1", Schema: cameraControlSchema()},
		},
	}
}

var schemaVersions = map[string]*epics.Schema{
	// v1: instrument/devices variant.
	"v1": opticsSchema("v1"),
	// v2: tomo_instrument/devices variant. Field-identical to v1 today;
	// kept separate so future drift stays versioned.
	"v2": opticsSchema("v2"),
}

// DefaultSchemaVersion is used when the configuration does not pin one.
const DefaultSchemaVersion = "v2"

// SchemaVersion looks up a versioned optics device tree schema.
func SchemaVersion(version string) (*epics.Schema, error) {
	if version == "" {
		version = DefaultSchemaVersion
	}

	schema, ok := schemaVersions[version]
	if !ok {
		return nil, fmt.Errorf("unknown optics schema version: %q (have %v)", version, SchemaVersions())
	}
	return schema, nil
}

// SchemaVersions lists the known schema versions, sorted.
func SchemaVersions() []string {
	versions := make([]string, 0, len(schemaVersions))
	for v := range schemaVersions {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
