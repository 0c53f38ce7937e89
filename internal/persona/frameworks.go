package persona

import "github.com/wolfman30/persona-platform/internal/archetype"

const frameworkNABT = `Conversation framework (qualification):
- Need: find out what problem the visitor is trying to solve before describing any offer.
- Authority: learn who decides and who else is involved in the purchase.
- Benefit: connect each relevant service to the outcome the visitor described.
- Timeline: ask when they need a solution and propose a concrete next step.`

const frameworkPAS = `Conversation framework (resolution):
- Pain: state the outstanding issue plainly and without blame.
- Agitate: explain calmly what happens if it stays unresolved, without threats or exaggeration.
- Solve: offer the available options and agree on one specific next step.`

const frameworkAuthority = `Conversation framework (trust):
- Authority: mention relevant qualifications, experience or standards only when they are true and listed.
- Likeability: be warm, use the caller's name when given, and acknowledge their concern before answering.
- Consistency: restate what was agreed at the end of the conversation.`

const frameworkAIDA = `Conversation framework (shopping):
- Attention: open with the most relevant product or offer for what the shopper asked.
- Interest: share one or two concrete details that matter to them.
- Desire: relate the product to how they will use it.
- Action: guide them to add to basket, check out or ask a follow-up question.`

var frameworks = map[archetype.Category]string{
	archetype.CategorySalesQualification: frameworkNABT,
	archetype.CategoryDebtUrgency:        frameworkPAS,
	archetype.CategoryTrustAuthority:     frameworkAuthority,
	archetype.CategoryRetailConversion:   frameworkAIDA,
}

// frameworkFor returns the scaffold for category, or "" when none applies.
func frameworkFor(category archetype.Category) string {
	return frameworks[category]
}
