// Package blankname derives a deterministic, human-readable fallback label
// from the first three bytes of a public key, for users who have not yet
// set a profile username. The word tables are fixed and sized to 256 so
// each byte maps directly to an entry; the modulo is kept anyway so the
// function degrades gracefully if a table is ever shortened.
package blankname

import "fmt"

// From derives "<adjective>_<color>_<animal>" from the first three bytes of
// a 32-byte ed25519 public key.
func From(pubkey []byte) string {
	var a, c, n byte
	if len(pubkey) > 0 {
		a = pubkey[0]
	}
	if len(pubkey) > 1 {
		c = pubkey[1]
	}
	if len(pubkey) > 2 {
		n = pubkey[2]
	}
	adj := adjectives[int(a)%len(adjectives)]
	col := colors[int(c)%len(colors)]
	ani := animals[int(n)%len(animals)]
	return fmt.Sprintf("%s_%s_%s", adj, col, ani)
}

var adjectives = buildTable([]string{
	"able", "agile", "ancient", "bold", "brave", "bright", "brisk", "calm",
	"clever", "cosmic", "crisp", "curious", "daring", "eager", "early",
	"easy", "elegant", "faint", "fair", "faithful", "famous", "fancy",
	"fast", "fierce", "fine", "fluent", "fond", "frank", "fresh", "full",
	"gentle", "giant", "glad", "gold", "good", "grand", "great", "green",
	"happy", "hardy", "harsh", "hazy", "heavy", "helpful", "hidden",
	"honest", "humble", "icy", "ideal", "jolly", "keen", "kind", "lazy",
	"light", "lively", "lofty", "lone", "loud", "loyal", "lucky", "lunar",
	"mellow", "merry", "mighty", "mild", "misty", "modest", "neat",
	"nimble", "noble", "numb", "odd", "olive", "open", "orange", "patient",
	"pale", "plain", "plump", "polar", "polite", "proud", "pure", "quick",
	"quiet", "rapid", "rare", "ready", "regal", "robust", "rough", "round",
	"royal", "rustic", "sandy", "sharp", "shiny", "shy", "silent", "silky",
	"silver", "simple", "slim", "sly", "small", "smart", "smooth", "soft",
	"solar", "solid", "sound", "spare", "spicy", "steady", "stern",
	"still", "stout", "strange", "strong", "subtle", "sunny", "super",
	"sweet", "swift", "tall", "tame", "tart", "tender", "tidy", "tiny",
	"tough", "trim", "true", "usual", "vague", "valid", "vast", "vital",
	"vivid", "warm", "wary", "weak", "wide", "wild", "windy", "wise",
	"witty", "wooden", "young", "zealous", "zesty", "amber", "azure",
	"bronze", "coral", "cream", "crimson", "dusty", "earthy", "emerald",
	"feather", "flint", "foggy", "frosty", "garnet", "glassy", "granite",
	"honey", "indigo", "ivory", "jade", "lava", "lemon", "lilac", "linen",
	"marble", "maroon", "mauve", "mint", "moss", "mustard", "onyx",
	"opal", "peach", "pearl", "pewter", "pine", "plum", "quartz", "rose",
	"ruby", "rust", "sage", "sapphire", "scarlet", "sepia", "shale",
	"slate", "smoky", "snowy", "spruce", "stone", "straw", "sugar", "tan",
	"teal", "topaz", "umber", "velvet", "violet", "walnut", "wheat",
	"zinc", "ashen", "breezy", "chalky", "dewy", "dim", "dry", "echo",
	"far", "flat", "free", "frozen", "glowing", "hollow", "humid", "inky",
	"jagged", "lean", "level", "limber", "low", "mossy", "muted",
	"narrow", "old", "paper", "rocky", "salty", "shady", "shallow",
	"sharp2", "sheer", "sleek", "sparse", "spry", "squat", "starlit",
	"stormy", "thin", "timid", "upper", "velvety", "wavy", "wispy",
})

var colors = buildTable([]string{
	"red", "blue", "green", "yellow", "purple", "orange", "pink", "brown",
	"black", "white", "gray", "cyan", "magenta", "maroon", "navy", "olive",
	"teal", "silver", "gold", "coral", "salmon", "indigo", "violet",
	"crimson", "scarlet", "amber", "emerald", "jade", "ruby", "sapphire",
	"topaz", "bronze", "copper", "ivory", "beige", "tan", "khaki", "mint",
	"lavender", "plum", "rose", "peach", "lime", "forest", "sky", "ocean",
	"sand", "clay", "charcoal", "slate", "ash", "smoke", "mist", "fog",
	"snow", "frost", "ice", "steel", "iron", "stone", "granite", "marble",
	"pearl", "onyx", "jet", "ebony", "chestnut", "mahogany", "walnut",
	"cedar", "pine", "moss", "fern", "sage", "basil", "mint2", "lilac",
	"wisteria", "periwinkle", "cerulean", "cobalt", "azure", "aqua",
	"turquoise", "seafoam", "mauve", "burgundy", "wine", "rust", "brick",
	"terracotta", "cinnamon", "cocoa", "coffee", "mocha", "caramel",
	"honey", "mustard", "lemon", "banana", "canary", "daffodil", "sunny",
	"flame", "ember", "fire", "blaze", "spark", "glow", "shine", "shadow",
	"dusk", "dawn", "twilight", "midnight", "noon", "sunrise", "sunset",
	"cloud", "rain", "storm", "thunder", "lightning", "breeze", "wind",
	"gale", "tide", "wave", "current", "river", "stream", "brook", "lake",
	"pond", "pool", "well", "spring", "glacier", "iceberg", "tundra",
	"desert", "oasis", "dune", "mesa", "canyon", "valley", "peak",
	"summit", "ridge", "cliff", "cave", "cavern", "grotto", "reef",
	"lagoon", "bay", "cove", "harbor", "shore", "coast", "island",
	"peninsula", "isthmus", "plateau", "plain", "prairie", "meadow",
	"field", "orchard", "grove", "garden", "hedge", "thicket", "bramble",
	"briar", "vine", "ivy", "clover", "fern2", "moss2", "lichen", "algae",
	"coral2", "shell", "pebble", "boulder", "crystal", "quartz", "flint2",
	"obsidian", "amethyst", "garnet", "opal", "agate", "jasper",
	"chalcedony", "malachite", "turquoise2", "aquamarine", "citrine",
	"peridot", "tanzanite", "moonstone", "sunstone", "labradorite",
})

var animals = buildTable([]string{
	"fox", "wolf", "bear", "lion", "tiger", "eagle", "hawk", "owl", "deer",
	"elk", "moose", "otter", "beaver", "badger", "raccoon", "rabbit",
	"hare", "squirrel", "chipmunk", "mouse", "rat", "vole", "shrew",
	"hedgehog", "mole", "bat", "heron", "crane", "stork", "swan", "goose",
	"duck", "loon", "gull", "tern", "puffin", "penguin", "pelican",
	"flamingo", "ibis", "egret", "kingfisher", "woodpecker", "sparrow",
	"finch", "robin", "wren", "lark", "swallow", "swift", "martin",
	"thrush", "jay", "magpie", "crow", "raven", "dove", "pigeon",
	"falcon", "kestrel", "osprey", "vulture", "condor", "kite", "harrier",
	"buzzard", "shrike", "cuckoo", "nightjar", "swiftlet", "hummingbird",
	"toucan", "parrot", "macaw", "cockatoo", "lorikeet", "lovebird",
	"canary", "goldfinch", "bullfinch", "grosbeak", "bunting", "cardinal",
	"tanager", "oriole", "warbler", "vireo", "kinglet", "nuthatch",
	"creeper", "titmouse", "chickadee", "waxwing", "starling", "myna",
	"lizard", "gecko", "iguana", "chameleon", "skink", "monitor",
	"turtle", "tortoise", "terrapin", "frog", "toad", "newt", "salamander",
	"axolotl", "caecilian", "snake", "viper", "cobra", "python", "boa",
	"adder", "rattlesnake", "garter", "racer", "whipsnake", "salmon",
	"trout", "bass", "perch", "pike", "carp", "catfish", "eel", "herring",
	"sardine", "anchovy", "mackerel", "tuna", "marlin", "swordfish",
	"ray", "skate", "shark", "dolphin", "porpoise", "whale", "narwhal",
	"walrus", "seal", "sealion", "manatee", "dugong", "octopus", "squid",
	"cuttlefish", "nautilus", "clam", "oyster", "mussel", "scallop",
	"snail", "slug", "crab", "lobster", "shrimp", "crayfish", "barnacle",
	"starfish", "urchin", "anemone", "jellyfish", "coral3", "sponge",
	"ant", "bee", "wasp", "hornet", "beetle", "ladybug", "firefly",
	"cricket", "grasshopper", "locust", "mantis", "cicada", "aphid",
	"dragonfly", "damselfly", "mayfly", "stonefly", "caddisfly",
	"butterfly", "moth", "caterpillar", "spider", "scorpion", "tick",
	"mite", "centipede", "millipede", "woodlouse", "earthworm", "leech",
	"panda", "koala", "sloth", "armadillo", "anteater", "pangolin",
	"kangaroo", "wallaby", "wombat", "platypus", "echidna", "lemur",
	"gibbon", "orangutan", "gorilla", "chimpanzee", "baboon", "macaque",
})

func buildTable(words []string) []string {
	if len(words) == 0 {
		return words
	}
	table := make([]string, 256)
	for i := range table {
		table[i] = words[i%len(words)]
	}
	return table
}
