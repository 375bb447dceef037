package enums

// AuditAction names the event recorded in the audit trail. These values end
// up in the published audit messages, so treat them as a wire contract.
type AuditAction string

const (
	AuditUserRegistered    AuditAction = "user.registered"
	AuditUserLoggedIn      AuditAction = "user.logged_in"
	AuditUserSuspended     AuditAction = "user.suspended"
	AuditUserReactivated   AuditAction = "user.reactivated"
	AuditRideCreated       AuditAction = "ride.created"
	AuditRideStarted       AuditAction = "ride.started"
	AuditRideFinished      AuditAction = "ride.finished"
	AuditRideCancelled     AuditAction = "ride.cancelled"
	AuditRideJoined        AuditAction = "ride.joined"
	AuditRideLeft          AuditAction = "ride.left"
	AuditRideValidated     AuditAction = "ride.validated"
	AuditRideDisputed      AuditAction = "ride.disputed"
	AuditReviewSubmitted   AuditAction = "review.submitted"
	AuditReviewModerated   AuditAction = "review.moderated"
	AuditCreditsMoved      AuditAction = "credits.moved"
	AuditEmployeeCreated   AuditAction = "employee.created"
	AuditVehicleRegistered AuditAction = "vehicle.registered"
)

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}
