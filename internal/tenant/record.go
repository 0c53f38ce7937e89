// Package tenant provides read access to tenant business records: an
// in-process cache, a static demo table and optional remote stores.
package tenant

import "strings"

// Provenance names the layer that served a record.
type Provenance string

const (
	ProvenanceDemo     Provenance = "demo"
	ProvenanceRedis    Provenance = "redis"
	ProvenancePostgres Provenance = "postgres"
	ProvenanceDynamo   Provenance = "dynamodb"
)

// Payment describes how a tenant takes money.
type Payment struct {
	Currency    string `json:"currency,omitempty" yaml:"currency" dynamodbav:"currency,omitempty"`
	Method      string `json:"method,omitempty" yaml:"method" dynamodbav:"method,omitempty"`
	DetailsText string `json:"details_text,omitempty" yaml:"details_text" dynamodbav:"detailsText,omitempty"`
}

// Record is one tenant's business data. Records are owned by an external
// administrative process; this package only reads them.
type Record struct {
	ID               string     `json:"id" yaml:"id" dynamodbav:"tenantId"`
	ArchetypeKey     string     `json:"archetype_key" yaml:"archetype_key" dynamodbav:"archetypeKey"`
	DisplayName      string     `json:"display_name,omitempty" yaml:"display_name" dynamodbav:"displayName,omitempty"`
	Language         string     `json:"language,omitempty" yaml:"language" dynamodbav:"language,omitempty"`
	Address          string     `json:"address,omitempty" yaml:"address" dynamodbav:"address,omitempty"`
	Phone            string     `json:"phone,omitempty" yaml:"phone" dynamodbav:"phone,omitempty"`
	Domain           string     `json:"domain,omitempty" yaml:"domain" dynamodbav:"domain,omitempty"`
	OpeningHours     string     `json:"opening_hours,omitempty" yaml:"opening_hours" dynamodbav:"openingHours,omitempty"`
	Specialty        string     `json:"specialty,omitempty" yaml:"specialty" dynamodbav:"specialty,omitempty"`
	ServicesOffered  []string   `json:"services_offered,omitempty" yaml:"services_offered" dynamodbav:"servicesOffered,omitempty"`
	ServiceZones     []string   `json:"service_zones,omitempty" yaml:"service_zones" dynamodbav:"serviceZones,omitempty"`
	Payment          Payment    `json:"payment" yaml:"payment" dynamodbav:"payment"`
	KnowledgeBaseRef string     `json:"knowledge_base_ref,omitempty" yaml:"knowledge_base_ref" dynamodbav:"knowledgeBaseRef,omitempty"`
	Provenance       Provenance `json:"provenance,omitempty" yaml:"-" dynamodbav:"-"`
}

// Clone returns a deep copy so cached records cannot be mutated by callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.ServicesOffered != nil {
		out.ServicesOffered = append([]string(nil), r.ServicesOffered...)
	}
	if r.ServiceZones != nil {
		out.ServiceZones = append([]string(nil), r.ServiceZones...)
	}
	return &out
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
