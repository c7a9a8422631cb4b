package model

// Artifact store keys are mission-scoped. Raw trajectory output lives under
// raw/, derived products at the mission root. The layout is part of the
// published interface and shared with the API layer.

// RawParticlesKey returns the raw trajectory artifact key for a mission.
func RawParticlesKey(missionID string) string {
	return missionID + "/raw/particles.json"
}

// TrajectoriesKey returns the derived GeoJSON artifact key for a mission.
func TrajectoriesKey(missionID string) string {
	return missionID + "/trajectories.geojson"
}

// HeatmapKey returns the heatmap image artifact key for a mission.
func HeatmapKey(missionID string) string {
	return missionID + "/heatmap.png"
}

// ReportKey returns the PDF report artifact key for a mission.
func ReportKey(missionID string) string {
	return missionID + "/report.pdf"
}
