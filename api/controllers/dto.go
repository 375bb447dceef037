package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/ecoride-app/ecoride-backend/internal/reviews"
	"github.com/ecoride-app/ecoride-backend/internal/users"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
)

// The JSON shapes keep the French field naming of the original web client.

type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Pseudo      string     `json:"pseudo"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Status      string     `json:"statut"`
	Credits     int        `json:"credits"`
	Photo       *string    `json:"photo,omitempty"`
	Preferences *string    `json:"preferences,omitempty"`
	CreatedAt   time.Time  `json:"creeLe"`
	SuspendedAt *time.Time `json:"suspenduLe,omitempty"`
}

func toUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Pseudo:      u.Pseudo,
		Email:       u.Email,
		Role:        u.Role.String(),
		Status:      u.Status.String(),
		Credits:     u.Credits,
		Photo:       u.Photo,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
		SuspendedAt: u.SuspendedAt,
	}
}

type VehicleDTO struct {
	ID              uuid.UUID  `json:"id"`
	Plate           string     `json:"immatriculation"`
	Brand           string     `json:"marque"`
	Model           string     `json:"modele"`
	Color           string     `json:"couleur"`
	Energy          string     `json:"energie"`
	Seats           int        `json:"places"`
	FirstRegistered *time.Time `json:"premiereImmatriculation,omitempty"`
}

func toVehicleDTO(v *models.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:              v.ID,
		Plate:           v.Plate,
		Brand:           v.Brand,
		Model:           v.Model,
		Color:           v.Color,
		Energy:          v.Energy,
		Seats:           v.Seats,
		FirstRegistered: v.FirstRegistered,
	}
}

func toVehicleDTOs(list []models.Vehicle) []VehicleDTO {
	out := make([]VehicleDTO, 0, len(list))
	for i := range list {
		out = append(out, toVehicleDTO(&list[i]))
	}
	return out
}

type RideDTO struct {
	ID            uuid.UUID  `json:"id"`
	DriverID      uuid.UUID  `json:"chauffeurId"`
	VehicleID     uuid.UUID  `json:"vehiculeId"`
	DepartureCity string     `json:"villeDepart"`
	ArrivalCity   string     `json:"villeArrivee"`
	DepartureAt   time.Time  `json:"dateDepart"`
	ArrivalAt     time.Time  `json:"dateArrivee"`
	Price         int        `json:"prix"`
	SeatsTotal    int        `json:"placesTotal"`
	SeatsLeft     int        `json:"placesRestantes"`
	Status        string     `json:"statut"`
	Ecological    bool       `json:"ecologique"`
	StartedAt     *time.Time `json:"demarreLe,omitempty"`
	FinishedAt    *time.Time `json:"termineLe,omitempty"`
	CancelledAt   *time.Time `json:"annuleLe,omitempty"`
}

func toRideDTO(r *models.Ride) RideDTO {
	return RideDTO{
		ID:            r.ID,
		DriverID:      r.DriverID,
		VehicleID:     r.VehicleID,
		DepartureCity: r.DepartureCity,
		ArrivalCity:   r.ArrivalCity,
		DepartureAt:   r.DepartureAt,
		ArrivalAt:     r.ArrivalAt,
		Price:         r.Price,
		SeatsTotal:    r.SeatsTotal,
		SeatsLeft:     r.SeatsLeft,
		Status:        r.Status.String(),
		Ecological:    r.Ecological,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		CancelledAt:   r.CancelledAt,
	}
}

func toRideDTOs(list []models.Ride) []RideDTO {
	out := make([]RideDTO, 0, len(list))
	for i := range list {
		out = append(out, toRideDTO(&list[i]))
	}
	return out
}

type ParticipationDTO struct {
	ID               uuid.UUID  `json:"id"`
	RideID           uuid.UUID  `json:"covoiturageId"`
	PassengerID      uuid.UUID  `json:"passagerId"`
	CreditsSpent     int        `json:"creditsDepenses"`
	ValidationStatus string     `json:"statutValidation"`
	ValidationNote   *string    `json:"noteValidation,omitempty"`
	CancelledAt      *time.Time `json:"annuleLe,omitempty"`
	ValidatedAt      *time.Time `json:"valideLe,omitempty"`
}

func toParticipationDTO(p *models.Participation) ParticipationDTO {
	return ParticipationDTO{
		ID:               p.ID,
		RideID:           p.RideID,
		PassengerID:      p.PassengerID,
		CreditsSpent:     p.CreditsSpent,
		ValidationStatus: p.ValidationStatus.String(),
		ValidationNote:   p.ValidationNote,
		CancelledAt:      p.CancelledAt,
		ValidatedAt:      p.ValidatedAt,
	}
}

func toParticipationDTOs(list []models.Participation) []ParticipationDTO {
	out := make([]ParticipationDTO, 0, len(list))
	for i := range list {
		out = append(out, toParticipationDTO(&list[i]))
	}
	return out
}

type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	RideID    uuid.UUID `json:"covoiturageId"`
	AuthorID  uuid.UUID `json:"auteurId"`
	DriverID  uuid.UUID `json:"chauffeurId"`
	Rating    int       `json:"note"`
	Comment   *string   `json:"commentaire,omitempty"`
	Status    string    `json:"statut"`
	CreatedAt time.Time `json:"creeLe"`
}

func toReviewDTO(r *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:        r.ID,
		RideID:    r.RideID,
		AuthorID:  r.AuthorID,
		DriverID:  r.DriverID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		Status:    r.Status.String(),
		CreatedAt: r.CreatedAt,
	}
}

func toReviewDTOs(list []models.Review) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(list))
	for i := range list {
		out = append(out, toReviewDTO(&list[i]))
	}
	return out
}

type RatingDTO struct {
	Average float64 `json:"moyenne"`
	Count   int64   `json:"nombre"`
}

func toRatingDTO(s *reviews.RatingSummary) RatingDTO {
	return RatingDTO{Average: s.Average, Count: s.Count}
}

type CreditMovementDTO struct {
	ID        uuid.UUID  `json:"id"`
	RideID    *uuid.UUID `json:"covoiturageId,omitempty"`
	Reason    string     `json:"motif"`
	Amount    int        `json:"montant"`
	Balance   int        `json:"solde"`
	CreatedAt time.Time  `json:"creeLe"`
}

func toCreditMovementDTOs(list []models.CreditMovement) []CreditMovementDTO {
	out := make([]CreditMovementDTO, 0, len(list))
	for _, m := range list {
		out = append(out, CreditMovementDTO{
			ID:        m.ID,
			RideID:    m.RideID,
			Reason:    m.Reason.String(),
			Amount:    m.Amount,
			Balance:   m.Balance,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

type HistoryDTO struct {
	AsDriver    []RideDTO          `json:"enTantQueChauffeur"`
	AsPassenger []ParticipationDTO `json:"enTantQuePassager"`
}

func toHistoryDTO(h *users.History) HistoryDTO {
	return HistoryDTO{
		AsDriver:    toRideDTOs(h.AsDriver),
		AsPassenger: toParticipationDTOs(h.AsPassenger),
	}
}

type DailyCountDTO struct {
	Day   string `json:"jour"`
	Count int64  `json:"nombre"`
}

func toDailyCountDTOs(list []users.DailyCount) []DailyCountDTO {
	out := make([]DailyCountDTO, 0, len(list))
	for _, d := range list {
		out = append(out, DailyCountDTO{Day: d.Day, Count: d.Count})
	}
	return out
}

type DailyCreditsDTO struct {
	Day     string `json:"jour"`
	Credits int64  `json:"credits"`
}

func toDailyCreditsDTOs(list []users.DailyCredits) []DailyCreditsDTO {
	out := make([]DailyCreditsDTO, 0, len(list))
	for _, d := range list {
		out = append(out, DailyCreditsDTO{Day: d.Day, Credits: d.Credits})
	}
	return out
}
