package botany

// Feature names, shared between extraction, weighting and the stored
// catalog feature maps.
const (
	LeafColor     = "leaf_color"
	LeafShape     = "leaf_shape"
	FlowerColor   = "flower_color"
	FlowerShape   = "flower_shape"
	GrowthPattern = "growth_pattern"
	Texture       = "texture"
	SizeCategory  = "size_category"
)

// featureOrder fixes iteration order so scoring is deterministic.
var featureOrder = []string{
	LeafColor, LeafShape, FlowerColor, FlowerShape, GrowthPattern, Texture, SizeCategory,
}

// defaults are the category assigned when no keyword matches. A feature at
// its default is treated as absent when scoring.
var defaults = map[string]string{
	LeafColor:     "green",
	LeafShape:     "unknown",
	FlowerColor:   "none",
	FlowerShape:   "unknown",
	GrowthPattern: "unknown",
	Texture:       "unknown",
	SizeCategory:  "medium",
}

// rule maps keywords to a category. Rules are evaluated in order and the
// first match wins, so the ordering below is part of the contract.
type rule struct {
	keywords []string
	category string
}

var leafColorRules = []rule{
	{[]string{"dark green"}, "dark_green"}, // also matched against the name, see extractLeafColor
	{[]string{"light green", "pale"}, "light_green"},
	{[]string{"yellow", "golden"}, "yellow_green"},
	{[]string{"grey", "gray"}, "grey_green"},
	{[]string{"blue", "silvery"}, "blue_green"},
}

var leafShapeRules = []rule{
	{[]string{"lance", "narrow"}, "lanceolate"},
	{[]string{"oval", "elliptic"}, "oval"},
	{[]string{"round", "circular"}, "round"},
	{[]string{"heart", "cordate"}, "heart_shaped"},
	{[]string{"needle", "linear"}, "needle_like"},
	{[]string{"palm", "lobed"}, "palmate"},
}

var flowerColorRules = []rule{
	{[]string{"white"}, "white"},
	{[]string{"yellow"}, "yellow"},
	{[]string{"purple"}, "purple"},
	{[]string{"pink"}, "pink"},
	{[]string{"red"}, "red"},
	{[]string{"blue"}, "blue"},
	{[]string{"orange"}, "orange"},
}

var flowerShapeRules = []rule{
	{[]string{"daisy", "ray"}, "daisy_like"},
	{[]string{"cone", "spike"}, "cone_shaped"},
	{[]string{"bell", "tubular"}, "bell_shaped"},
	{[]string{"star"}, "star_shaped"},
	{[]string{"cluster"}, "clustered"},
}

var growthPatternRules = []rule{
	{[]string{"rosette"}, "rosette"},
	{[]string{"vine", "climbing"}, "climbing"},
	{[]string{"bush", "shrub"}, "bushy"},
	{[]string{"upright", "erect"}, "upright"},
	{[]string{"spreading", "mat"}, "spreading"},
}

var textureRules = []rule{
	{[]string{"smooth"}, "smooth"},
	{[]string{"hairy", "fuzzy"}, "hairy"},
	{[]string{"rough", "coarse"}, "rough"},
	{[]string{"waxy", "glossy"}, "waxy"},
	{[]string{"succulent", "fleshy"}, "succulent"},
}

var sizeCategoryRules = []rule{
	{[]string{"tree", "tall"}, "large"},
	{[]string{"shrub", "bush"}, "medium"},
	{[]string{"small", "herb"}, "small"},
}

// weights bias the score towards the more discriminating features.
var weights = map[string]float64{
	LeafColor:     1.5,
	LeafShape:     2.0,
	FlowerColor:   1.5,
	FlowerShape:   1.0,
	GrowthPattern: 1.0,
	Texture:       1.0,
	SizeCategory:  0.5,
}

// similarGroups lists category pairs close enough to earn half weight.
var similarGroups = map[string][][]string{
	LeafColor: {
		{"dark_green", "green"},
		{"light_green", "yellow_green"},
		{"grey_green", "blue_green"},
	},
	LeafShape: {
		{"oval", "round"},
		{"lanceolate", "needle_like"},
	},
	FlowerColor: {
		{"pink", "red"},
		{"purple", "blue"},
		{"yellow", "orange"},
	},
}
