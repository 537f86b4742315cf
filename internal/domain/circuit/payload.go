package circuit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/platform/apperr"
)

// payloadSchema is the typed form of one exam type's payload. New schemas
// start from their defaults; derive fills computed fields after validation.
type payloadSchema interface {
	derive(patch map[string]interface{})
}

// resetter is implemented by schemas that clear stored derived fields
// before the merged payload is validated.
type resetter interface {
	reset(patch map[string]interface{})
}

type TriagePayload struct {
	WeightKg        float64 `json:"weight_kg" validate:"gte=30,lte=200"`
	HeightCm        float64 `json:"height_cm" validate:"gte=100,lte=230"`
	TemperatureC    float64 `json:"temperature_c" validate:"gte=35,lte=42"`
	SpO2            int     `json:"spo2" validate:"gte=70,lte=100"`
	Systolic        int     `json:"systolic" validate:"gte=60,lte=250"`
	Diastolic       int     `json:"diastolic" validate:"gte=30,lte=150,ltfield=Systolic"`
	HeartRate       int     `json:"heart_rate" validate:"gte=40,lte=200"`
	RespiratoryRate int     `json:"respiratory_rate" validate:"gte=10,lte=60"`
	Allergies       string  `json:"allergies" validate:"max=500"`
	Notes           string  `json:"notes" validate:"max=2000"`
	BMI             float64 `json:"bmi"`
	BMIClass        string  `json:"bmi_class"`
}

func (p *TriagePayload) derive(map[string]interface{}) {
	p.BMI = BMI(p.WeightKg, p.HeightCm)
	p.BMIClass = ClassifyBMI(p.BMI)
}

type AudiometryPayload struct {
	Right500  int     `json:"right_500" validate:"gte=0,lte=120"`
	Right1000 int     `json:"right_1000" validate:"gte=0,lte=120"`
	Right2000 int     `json:"right_2000" validate:"gte=0,lte=120"`
	Right4000 int     `json:"right_4000" validate:"gte=0,lte=120"`
	Right8000 int     `json:"right_8000" validate:"gte=0,lte=120"`
	Left500   int     `json:"left_500" validate:"gte=0,lte=120"`
	Left1000  int     `json:"left_1000" validate:"gte=0,lte=120"`
	Left2000  int     `json:"left_2000" validate:"gte=0,lte=120"`
	Left4000  int     `json:"left_4000" validate:"gte=0,lte=120"`
	Left8000  int     `json:"left_8000" validate:"gte=0,lte=120"`
	RightPTA  float64 `json:"right_pta"`
	LeftPTA   float64 `json:"left_pta"`
}

// pta is the pure-tone average over 500, 1000, 2000 and 4000 Hz.
func pta(a, b, c, d int) float64 {
	return math.Round(float64(a+b+c+d)/4*10) / 10
}

func (p *AudiometryPayload) derive(map[string]interface{}) {
	p.RightPTA = pta(p.Right500, p.Right1000, p.Right2000, p.Right4000)
	p.LeftPTA = pta(p.Left500, p.Left1000, p.Left2000, p.Left4000)
}

type OphthalmologyPayload struct {
	FarRight    string `json:"far_right" validate:"snellen"`
	FarLeft     string `json:"far_left" validate:"snellen"`
	NearRight   string `json:"near_right" validate:"jaeger"`
	NearLeft    string `json:"near_left" validate:"jaeger"`
	ColorVision string `json:"color_vision" validate:"oneof=normal mild_anomaly moderate_anomaly severe_anomaly achromatopsia"`
	Stereopsis  string `json:"stereopsis" validate:"oneof=normal reduced very_reduced absent"`
}

func (p *OphthalmologyPayload) derive(map[string]interface{}) {}

type SpirometryPayload struct {
	FVC     float64 `json:"fvc" validate:"gte=0,lte=10"`
	FEV1    float64 `json:"fev1" validate:"gte=0,lte=10,within_fvc"`
	FEV1FVC float64 `json:"fev1_fvc" validate:"gte=0,lte=100"`
	// RatioDerived marks a ratio computed here rather than measured.
	RatioDerived bool `json:"fev1_fvc_derived"`
}

// reset drops a derived ratio unless the patch measures one, so amended
// volumes are validated without the stale value.
func (p *SpirometryPayload) reset(patch map[string]interface{}) {
	if _, measured := patch["fev1_fvc"]; !measured && p.RatioDerived {
		p.FEV1FVC = 0
	}
}

// derive computes FEV1/FVC when it was not measured. A measured ratio in the
// patch always wins; a previously derived ratio is recomputed.
func (p *SpirometryPayload) derive(patch map[string]interface{}) {
	if _, measured := patch["fev1_fvc"]; measured {
		p.RatioDerived = false
		return
	}
	if (p.FEV1FVC == 0 || p.RatioDerived) && p.FVC > 0 {
		p.FEV1FVC = math.Round(p.FEV1 / p.FVC * 100)
		p.RatioDerived = true
	}
}

type LaboratoryPayload struct {
	Hemoglobin  float64 `json:"hemoglobin" validate:"gte=0,lte=30"`
	Glucose     float64 `json:"glucose" validate:"gte=0,lte=1000"`
	Cholesterol float64 `json:"cholesterol" validate:"gte=0,lte=500"`
	BloodGroup  string  `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

func (p *LaboratoryPayload) derive(map[string]interface{}) {}

type MusculoskeletalPayload struct {
	Phalen  bool `json:"phalen"`
	Tinel   bool `json:"tinel"`
	Lasegue bool `json:"lasegue"`
}

func (p *MusculoskeletalPayload) derive(map[string]interface{}) {}

type PsychologyPayload struct {
	Notes string `json:"notes" validate:"max=5000"`
}

func (p *PsychologyPayload) derive(map[string]interface{}) {}

type GeneralPayload struct {
	Result string `json:"result" validate:"max=5000"`
}

func (p *GeneralPayload) derive(map[string]interface{}) {}

// newSchema returns the schema for t pre-filled with defaults. Unknown
// types record free text.
func newSchema(t catalog.ExamType) payloadSchema {
	switch t {
	case catalog.TypeTriage:
		return &TriagePayload{
			WeightKg: 70, HeightCm: 170, TemperatureC: 36.5, SpO2: 98,
			Systolic: 120, Diastolic: 80, HeartRate: 75, RespiratoryRate: 16,
		}
	case catalog.TypeAudiometry:
		return &AudiometryPayload{}
	case catalog.TypeOphthalmology:
		return &OphthalmologyPayload{
			FarRight: "20/20", FarLeft: "20/20", NearRight: "J1", NearLeft: "J1",
			ColorVision: "normal", Stereopsis: "normal",
		}
	case catalog.TypeSpirometry:
		return &SpirometryPayload{}
	case catalog.TypeLaboratory:
		return &LaboratoryPayload{}
	case catalog.TypeMusculoskeletal:
		return &MusculoskeletalPayload{}
	case catalog.TypePsychology:
		return &PsychologyPayload{}
	default:
		return &GeneralPayload{}
	}
}

var (
	snellenRe = regexp.MustCompile(`^20/[0-9]{2,3}$`)
	jaegerRe  = regexp.MustCompile(`^J[0-9]{1,2}$`)
	icd10Re   = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("snellen", func(fl validator.FieldLevel) bool {
		return snellenRe.MatchString(fl.Field().String())
	})
	v.RegisterValidation("jaeger", func(fl validator.FieldLevel) bool {
		return jaegerRe.MatchString(fl.Field().String())
	})
	v.RegisterValidation("icd10", func(fl validator.FieldLevel) bool {
		return icd10Re.MatchString(fl.Field().String())
	})
	// FEV1 cannot exceed FVC once FVC is known.
	v.RegisterValidation("within_fvc", func(fl validator.FieldLevel) bool {
		fvc := reflect.Indirect(fl.Parent()).FieldByName("FVC").Float()
		return fvc == 0 || fl.Field().Float() <= fvc
	})
	return v
}

var validate = newValidator()

// validationError turns validator output into a single apperr message.
func validationError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%s: %v", prefix, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "ltfield":
			msgs = append(msgs, fmt.Sprintf("%s must be lower than %s", fe.Field(), fe.Param()))
		case "within_fvc":
			msgs = append(msgs, fmt.Sprintf("%s must not exceed fvc", fe.Field()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s value", fe.Field(), fe.Tag()))
		}
	}
	return apperr.Validation("%s: %s", prefix, strings.Join(msgs, "; "))
}

// MergePayload shallow-merges patch over stored, fills defaults for absent
// fields, validates ranges and recomputes derived fields. Unknown keys and
// wrongly typed values are rejected.
func MergePayload(t catalog.ExamType, stored, patch map[string]interface{}) (map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(stored)+len(patch))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, apperr.Validation("payload is not serialisable: %v", err)
	}
	schema := newSchema(t)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(schema); err != nil {
		return nil, apperr.Validation("invalid %s payload: %v", t, err)
	}
	if r, ok := schema.(resetter); ok {
		r.reset(patch)
	}
	if err := validate.Struct(schema); err != nil {
		return nil, validationError(fmt.Sprintf("invalid %s payload", t), err)
	}
	schema.derive(patch)

	out, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return result, nil
}

// defaultConclusion is used when a result is saved without one.
func defaultConclusion(t catalog.ExamType, payload map[string]interface{}) string {
	if t == catalog.TypeTriage {
		if bmi, ok := payload["bmi"].(float64); ok {
			return fmt.Sprintf("Evaluado. IMC: %.2f (%s)", bmi, payload["bmi_class"])
		}
	}
	return ""
}
