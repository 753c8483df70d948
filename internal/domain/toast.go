package domain

// ToastKind classifies a user-facing notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Toast is an ephemeral, fire-and-forget notification.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}
