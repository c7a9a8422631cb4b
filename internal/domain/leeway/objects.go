// Package leeway maps drift object classes to their descriptions.
// The class numbers follow the standard leeway model categories and are part
// of the job payload contract.
package leeway

// DefaultClass is the object class used when a job omits one.
const DefaultClass = 1

var objectNames = map[int]string{
	1:  "Person-in-water (PIW)",
	2:  "Life raft with canopy",
	3:  "Life raft without canopy",
	4:  "Life raft - general",
	5:  "Fishing vessel",
	6:  "PIW - vertical",
	7:  "Sailing vessel - general",
	8:  "Power boat",
	9:  "Debris",
	10: "Medical waste",
	11: "Fishing gear",
	12: "Recreational boat",
	13: "Surf board",
	14: "Kayak",
	15: "Canoe",
	16: "Personal watercraft",
}

// Name returns the description for an object class.
func Name(class int) (string, bool) {
	name, ok := objectNames[class]
	return name, ok
}

// Valid reports whether class is a known object class.
func Valid(class int) bool {
	_, ok := objectNames[class]
	return ok
}
