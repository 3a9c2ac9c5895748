package osim

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/grf"
)

// DocumentVersion is the solver document schema version written in every
// setup file.
const DocumentVersion = "40000"

// Document is the root element of every solver setup file.
type Document struct {
	XMLName       xml.Name               `xml:"OpenSimDocument"`
	Version       string                 `xml:"Version,attr"`
	IK            *InverseKinematicsTool `xml:"InverseKinematicsTool,omitempty"`
	ID            *InverseDynamicsTool   `xml:"InverseDynamicsTool,omitempty"`
	ExternalLoads *ExternalLoads         `xml:"ExternalLoads,omitempty"`
}

// FileRef is an object loaded from another file.
type FileRef struct {
	File string `xml:"file,attr"`
}

// InverseKinematicsTool configures a marker-tracking run.
type InverseKinematicsTool struct {
	Name             string   `xml:"name,attr"`
	ResultsDirectory string   `xml:"results_directory"`
	ModelFile        string   `xml:"model_file"`
	ConstraintWeight string   `xml:"constraint_weight"`
	Accuracy         float64  `xml:"accuracy"`
	TaskSet          *FileRef `xml:"IKTaskSet,omitempty"`
	MarkerFile       string   `xml:"marker_file"`
	CoordinateFile   string   `xml:"coordinate_file"`
	TimeRange        string   `xml:"time_range"`
	OutputMotionFile string   `xml:"output_motion_file"`
	ReportErrors     bool     `xml:"report_errors"`
}

// InverseDynamicsTool configures a joint moment run.
type InverseDynamicsTool struct {
	Name              string  `xml:"name,attr"`
	ResultsDirectory  string  `xml:"results_directory"`
	ModelFile         string  `xml:"model_file"`
	TimeRange         string  `xml:"time_range"`
	ForcesToExclude   string  `xml:"forces_to_exclude"`
	ExternalLoadsFile string  `xml:"external_loads_file"`
	CoordinatesFile   string  `xml:"coordinates_file"`
	LowpassCutoff     float64 `xml:"lowpass_cutoff_frequency_for_coordinates"`
	OutputGenForce    string  `xml:"output_gen_force_file"`
}

// ExternalLoads binds the columns of an external-loads file to bodies.
type ExternalLoads struct {
	Name     string          `xml:"name,attr"`
	Forces   []ExternalForce `xml:"objects>ExternalForce"`
	Groups   string          `xml:"groups"`
	DataFile string          `xml:"datafile"`
}

// ExternalForce applies one side's block of the loads file to a foot.
type ExternalForce struct {
	Name            string `xml:"name,attr"`
	AppliedToBody   string `xml:"applied_to_body"`
	ForceExpressed  string `xml:"force_expressed_in_body"`
	PointExpressed  string `xml:"point_expressed_in_body"`
	ForceIdentifier string `xml:"force_identifier"`
	PointIdentifier string `xml:"point_identifier"`
	TorqueIdent     string `xml:"torque_identifier"`
	DataSourceName  string `xml:"data_source_name"`
}

// Encode writes the document with an XML declaration.
func (d Document) Encode(w io.Writer) error {
	if d.Version == "" {
		d.Version = DocumentVersion
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode %s document: %w", d.kind(), err)
	}
	return enc.Close()
}

func (d Document) kind() string {
	switch {
	case d.IK != nil:
		return "inverse kinematics"
	case d.ID != nil:
		return "inverse dynamics"
	case d.ExternalLoads != nil:
		return "external loads"
	}
	return "empty"
}

func timeRange(r [2]float64) string {
	return fmt.Sprintf("%g %g", r[0], r[1])
}

// identifier strips the axis from a loads column label, giving the prefix
// the solver appends x, y and z to.
func identifier(side gait.Side, q grf.Quantity) string {
	l := grf.Channel{Side: side, Quantity: q, Axis: grf.X}.Label()
	return strings.TrimSuffix(l, grf.X.String())
}

// NewExternalLoads binds both blocks of the loads file at path to the
// calcaneus of their side. Forces and points are expressed in ground.
func NewExternalLoads(path string) ExternalLoads {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	el := ExternalLoads{Name: "externalloads", DataFile: abs}
	for _, s := range gait.Sides {
		el.Forces = append(el.Forces, ExternalForce{
			Name:            "externalforce_" + s.Suffix(),
			AppliedToBody:   "calcn_" + s.Suffix(),
			ForceExpressed:  "ground",
			PointExpressed:  "ground",
			ForceIdentifier: identifier(s, grf.Force),
			PointIdentifier: identifier(s, grf.Position),
			TorqueIdent:     identifier(s, grf.Torque),
			DataSourceName:  filepath.Base(path),
		})
	}
	return el
}
