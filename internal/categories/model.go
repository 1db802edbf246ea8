package categories

// EquipmentCategory is one row of equipment_categories.
type EquipmentCategory struct {
	CategoryID uint   `json:"category_id"`
	Label      string `json:"label"`
	Code       string `json:"code"`
	IsDisabled bool   `json:"is_disabled"`
}

type CreateCategoryRequest struct {
	Label string `json:"label" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type UpdateCategoryRequest struct {
	Label      *string `json:"label,omitempty"`
	Code       *string `json:"code,omitempty"`
	IsDisabled *bool   `json:"is_disabled,omitempty"`
}
