package models

// Category placeholders
const (
	// CategoryNeedsCategory is assigned when neither a rule nor the AI
	// fallback could resolve a description.
	CategoryNeedsCategory = "NEEDS CATEGORY"

	// CategoryUncategorized is the category stored for a rule created
	// without an explicit category.
	CategoryUncategorized = "Uncategorized"

	// ColumnCategory is the header appended to categorized CSV output.
	ColumnCategory = "Category"
)

// File permissions
const (
	PermissionConfigFile = 0600
	PermissionDirectory  = 0750
	PermissionReportFile = 0644
)
