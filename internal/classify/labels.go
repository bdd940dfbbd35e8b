package classify

// Coarse pass: a single positive class against its complement.
const (
	CoarsePositive = "Artificial Intelligence"
	coarseNegative = "Not AI"
)

// CoarseLabels is the label set for the stage-one relevance score.
var CoarseLabels = []string{CoarsePositive, coarseNegative}

// FinePositive is the only label in FineLabels that confirms a candidate.
const FinePositive = "AI skill"

// FineLabels is the stage-two set: the positive class plus the
// adjacent-but-irrelevant disciplines that coarse scoring confuses with it.
// A top-ranked negative outranking the coarse score vetoes the candidate.
var FineLabels = []string{
	FinePositive,

	// Engineering and physical sciences
	"Computer science concept",
	"Mathematics concept",
	"Civil engineering method",
	"Mechanical engineering method",
	"Electronic/electrical engineering method",
	"Chemical engineering method",
	"Physics research method",
	"Materials-science method",
	"Analytical chemistry method",
	"Chemical synthesis technique",
	"Process engineering method",
	"Astronomy Concepts",

	// Biological sciences, medicine and health
	"Biology research method",
	"Molecular biology technique",
	"Cellular biology method",
	"Biomedical research method",
	"Pharmaceutical research method",
	"Genetics technique",
	"Bioinformatics method",
	"Medical research method",
	"Dental research method",
	"Psychology research topic",
	"Healthcare research method",

	// Environment
	"Environmental science topic",
	"Transport studies topic",
	"Earth science method",
	"Geography topic",
	"Food science method",
	"Nutrition research method",

	// Business
	"Accounting & finance topic",
	"Economics topic",
	"Management & organisations topic",
	"Marketing topic",
	"International business topic",
	"Analytics & operations topic",
	"People, work & employment topic",

	// Social sciences and humanities
	"History research",
	"Archaeology/medieval studies topic",
	"Languages & cultural studies topic",
	"Literary studies topic",
	"Design methodology",
	"Fine art / art history topic",
	"Media & communication studies topic",
	"Musicology / performance studies topic",
	"Philosophy & religion topic",
	"Ethics research",
	"Education research method",
	"Law topic",
	"Politics & international studies topic",
	"Sociology & social policy topic",

	// Generic statements
	"Generic research",
	"Misc",
}
