package models

import (
	"slices"

	"github.com/google/uuid"
)

var (
	UserProfiles    = []string{"Visitante", "Admin", "Chefe", "Adjunto", "Auxiliar"}
	UserRoles       = []string{"Militar", "Civil", "Empresa", "Engenheiro Civil", "Engenheiro Eletricista", "Engenheiro Mecânico", "Engenheiro de Computação", "Advogado", "Arquiteto"}
	UserRanks       = []string{"Civil", "Militar", "Soldado", "Cabo", "Sargento", "1º Tenente", "2º Tenente", "Capitão", "Major", "Tenente-Coronel", "Coronel", "General"}
	UserDepartments = []string{"CRO3", "SALC", "SecTec - Obras", "SecTec - Projetos", "SecTec - PljCtr", "Secretaria", "Chefia", "Fisc Adm", "Tesouraria"}
)

type User struct {
	Model
	Username       string     `gorm:"uniqueIndex;not null" json:"username"`
	Name           string     `gorm:"not null" json:"nameOfTheUser"`
	CPF            string     `gorm:"uniqueIndex;not null" json:"cpf"`
	CreaNumber     string     `gorm:"not null" json:"creaNumber"`
	Position       string     `gorm:"not null" json:"position"`
	Profile        string     `gorm:"not null;default:Visitante" json:"userProfile"`
	Role           string     `gorm:"not null;default:Militar" json:"userRole"`
	Rank           string     `gorm:"not null;default:Militar" json:"userPG"`
	Department     string     `gorm:"not null;default:CRO3" json:"userDepartament"`
	FacilityID     *uuid.UUID `gorm:"type:uuid" json:"facility"`
	ImageProfileID *uuid.UUID `gorm:"type:uuid" json:"imageProfile"`
	PasswordHash   string     `gorm:"not null" json:"-"`
}

// ApplyDefaults fills the enumerated fields left empty at registration.
func (u *User) ApplyDefaults() {
	if u.Profile == "" {
		u.Profile = UserProfiles[0]
	}
	if u.Role == "" {
		u.Role = UserRoles[0]
	}
	if u.Rank == "" {
		u.Rank = "Militar"
	}
	if u.Department == "" {
		u.Department = UserDepartments[0]
	}
}

// InvalidEnum returns the name of the first enumerated field holding a value
// outside its allowed set.
func (u *User) InvalidEnum() string {
	switch {
	case !slices.Contains(UserProfiles, u.Profile):
		return "userProfile"
	case !slices.Contains(UserRoles, u.Role):
		return "userRole"
	case !slices.Contains(UserRanks, u.Rank):
		return "userPG"
	case !slices.Contains(UserDepartments, u.Department):
		return "userDepartament"
	}
	return ""
}
