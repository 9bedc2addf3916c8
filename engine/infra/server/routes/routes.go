package routes

const version = "v0"

func Version() string {
	return version
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return "/api/" + version
}

func Ask() string       { return Base() + "/ask" }
func Documents() string { return Base() + "/documents" }
func Products() string  { return Base() + "/products" }
func Index() string     { return Base() + "/index" }
func Questions() string { return Base() + "/questions" }

// Health is unversioned so health checks survive API upgrades.
func Health() string {
	return "/health"
}
