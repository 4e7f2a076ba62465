package model

// ProjectPlan is the Pass 1 output. Field names mirror the JSON schema the
// provider is held to; every field is always present, possibly null.
type ProjectPlan struct {
	WorkBlocks      []string        `json:"work_blocks"`
	ScopeTags       []string        `json:"scope_tags"`
	Quantities      Quantities      `json:"quantities"`
	MaterialChoices MaterialChoices `json:"material_choices"`
	ReuseItems      []string        `json:"reuse_items"`
	RiskOptions     RiskOptions     `json:"risk_options"`
	Assumptions     []string        `json:"assumptions"`
	NotIncluded     []string        `json:"not_included"`
	RiskLevel       int             `json:"risk_level"`
	RiskPercentage  int             `json:"risk_percentage"`
	RiskReasoning   string          `json:"risk_reasoning"`
}

type Quantities struct {
	TakAreaM2      *float64 `json:"tak_area_m2"`
	FasadAreaM2    *float64 `json:"fasad_area_m2"`
	GolvAreaM2     *float64 `json:"golv_area_m2"`
	RaaspontByteM2 *float64 `json:"raaspont_byte_m2"`
	GipsAreaM2     *float64 `json:"gips_area_m2"`
	KakelAreaM2    *float64 `json:"kakel_area_m2"`
	LangdMeter     *float64 `json:"langd_meter"`
	BreddMeter     *float64 `json:"bredd_meter"`
	HojdMeter      *float64 `json:"hojd_meter"`
	AntalFonster   *int     `json:"antal_fönster"`
	AntalDorrar    *int     `json:"antal_dorrar"`
}

type MaterialChoices struct {
	RaaspontDim             *string `json:"raaspont_dim"`
	LaktBarDim              *string `json:"lakt_bar_dim"`
	LaktStroDim             *string `json:"lakt_stro_dim"`
	UnderlagspappTyp        *string `json:"underlagspapp_typ"`
	TakpanelTyp             *string `json:"takpanel_typ"`
	RegelDim                *string `json:"regel_dim"`
	BjalklagDim             *string `json:"bjalklag_dim"`
	IsoleringsskivaTjocklek *string `json:"isoleringsskiva_tjocklek"`
	GipsskivaTyp            *string `json:"gipsskiva_typ"`
	PanelDim                *string `json:"panel_dim"`
	PanelMontering          *string `json:"panel_montering"`
	PutsTyp                 *string `json:"puts_typ"`
	KakelStorlek            *string `json:"kakel_storlek"`
	KlinkerStorlek          *string `json:"klinker_storlek"`
	TatskiktTyp             *string `json:"tatskikt_typ"`
}

type RiskOptions struct {
	Byggstallning bool `json:"byggstallning"`
	Lift          bool `json:"lift"`
	Container     bool `json:"container"`
	Skyddsplast   bool `json:"skyddsplast"`
	Tipp          bool `json:"tipp"`
}

// Float returns the value or zero when the quantity is null.
func Float(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Int returns the value or zero when the count is null.
func Int(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// PrimaryScopeTag is the first scope tag, or the generic renovation tag.
func (p *ProjectPlan) PrimaryScopeTag() string {
	if len(p.ScopeTags) == 0 {
		return "renovering_generisk"
	}
	return p.ScopeTags[0]
}

func (p *ProjectPlan) HasWorkBlock(block string) bool {
	for _, b := range p.WorkBlocks {
		if b == block {
			return true
		}
	}
	return false
}
