package ports

// NotificationKind selects the template used by the delivery collaborator.
type NotificationKind string

const (
	NotifyOTP         NotificationKind = "otp"
	NotifyOTPResend   NotificationKind = "otp_resend"
	NotifySetPassword NotificationKind = "set_password"
	NotifyDeactivated NotificationKind = "account_deactivated"
	NotifyReactivated NotificationKind = "account_reactivated"
)

// Notification carries everything the delivery side needs to render and
// send one message.
type Notification struct {
	Email     string
	Recipient string
	Kind      NotificationKind
	Data      map[string]string
}

// Notifier dispatches notifications fire-and-forget: delivery failures are
// logged by the implementation, never propagated to the caller.
type Notifier interface {
	Notify(n Notification)
}
