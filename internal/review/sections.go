// Package review implements the section review and drift-detection engine
// behind the Viviendas Prophero workflow: tri-state per-section approval,
// auto-generated correction comments, rejection snapshots, drift reopening,
// global status aggregation and the submit/resubmit cycle.
package review

// Field is a single reviewable property field. Label is the user-facing
// Spanish name used when generating "Falta ..." correction comments.
type Field struct {
	Name  string
	Label string
}

// Section is a fixed named group of property fields reviewed with one
// combined yes/no answer.
type Section struct {
	ID     string
	Title  string
	Fields []Field
}

// Sections is the registry of reviewable sections, in display order. The
// order is significant: comment generation and submission history follow it.
var Sections = []Section{
	{
		ID:    "property-info",
		Title: "Información de la vivienda",
		Fields: []Field{
			{Name: "address", Label: "Dirección"},
			{Name: "postal_code", Label: "Código postal"},
			{Name: "city", Label: "Ciudad"},
			{Name: "surface_m2", Label: "Superficie"},
			{Name: "rooms", Label: "Habitaciones"},
			{Name: "bathrooms", Label: "Baños"},
		},
	},
	{
		ID:    "legal-documents",
		Title: "Documentación legal",
		Fields: []Field{
			{Name: "doc_a", Label: "Documento A"},
			{Name: "doc_b", Label: "Documento B"},
		},
	},
	{
		ID:    "home-insurance",
		Title: "Seguro de hogar",
		Fields: []Field{
			{Name: "insurance_company", Label: "Compañía aseguradora"},
			{Name: "policy_number", Label: "Número de póliza"},
			{Name: "insurance_docs", Label: "Documentos del seguro"},
		},
	},
	{
		ID:    "rental-status",
		Title: "Estado del alquiler",
		Fields: []Field{
			{Name: "monthly_rent", Label: "Renta mensual"},
			{Name: "deposit", Label: "Fianza"},
			{Name: "contract_start", Label: "Inicio del contrato"},
			{Name: "tenant_docs", Label: "Documentos del inquilino"},
		},
	},
	{
		ID:    "mortgage-info",
		Title: "Hipoteca",
		Fields: []Field{
			{Name: "mortgage_lender", Label: "Entidad hipotecaria"},
			{Name: "outstanding_amount", Label: "Importe pendiente"},
		},
	},
}

// DocumentListFields names the governed fields whose live values are
// document arrays, resolved through the document store when configured.
var DocumentListFields = []string{"insurance_docs", "tenant_docs"}

// SectionByID looks a section up in the registry.
func SectionByID(id string) (Section, bool) {
	for _, section := range Sections {
		if section.ID == id {
			return section, true
		}
	}
	return Section{}, false
}

// RequiredSectionIDs returns the ids every review must answer, in registry
// order. All registered sections are required.
func RequiredSectionIDs() []string {
	ids := make([]string, 0, len(Sections))
	for _, section := range Sections {
		ids = append(ids, section.ID)
	}
	return ids
}
