package types

type MunicipalDepartment struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;uniqueIndex;not null" json:"name"`
}

func (MunicipalDepartment) TableName() string { return "municipal_department" }

type Neighborhood struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;uniqueIndex;not null" json:"name"`
}

func (Neighborhood) TableName() string { return "neighborhood" }
