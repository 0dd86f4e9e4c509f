package models

// Status is the workflow position of a transaction.
type Status string

const (
	StatusPayment        Status = "Payment"
	StatusReceived       Status = "Received"
	StatusReentry        Status = "Reentry"
	StatusControl        Status = "Control"
	StatusQualification  Status = "Qualification"
	StatusRecording      Status = "Recording"
	StatusElaboration    Status = "Elaboration"
	StatusRevision       Status = "Revision"
	StatusJuridic        Status = "Juridic"
	StatusOnSign         Status = "OnSign"
	StatusDigitalization Status = "Digitalization"
	StatusToDeliver      Status = "ToDeliver"
	StatusDelivered      Status = "Delivered"
	StatusToReturn       Status = "ToReturn"
	StatusReturned       Status = "Returned"
	StatusDeleted        Status = "Deleted"
	StatusArchived       Status = "Archived"
	StatusEndPoint       Status = "EndPoint"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPayment, StatusReceived, StatusReentry, StatusControl,
	StatusQualification, StatusRecording, StatusElaboration, StatusRevision,
	StatusJuridic, StatusOnSign, StatusDigitalization, StatusToDeliver,
	StatusDelivered, StatusToReturn, StatusReturned, StatusDeleted,
	StatusArchived, StatusEndPoint,
}

var displayNames = map[Status]string{
	StatusPayment:        "Pago",
	StatusReceived:       "Recibido",
	StatusReentry:        "Reingreso",
	StatusControl:        "Mesa de control",
	StatusQualification:  "Calificación",
	StatusRecording:      "Registro",
	StatusElaboration:    "Elaboración",
	StatusRevision:       "Revisión",
	StatusJuridic:        "Jurídico",
	StatusOnSign:         "En firma",
	StatusDigitalization: "Digitalización",
	StatusToDeliver:      "Por entregar",
	StatusDelivered:      "Entregado",
	StatusToReturn:       "Por devolver",
	StatusReturned:       "Devuelto",
	StatusDeleted:        "Eliminado",
	StatusArchived:       "Archivado",
	StatusEndPoint:       "Fin",
}

// DisplayName is the registrar-facing Spanish name.
func (s Status) DisplayName() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := displayNames[s]
	return ok
}

// IsTerminal reports whether no further transition exists.
func (s Status) IsTerminal() bool {
	return s == StatusDeleted || s == StatusEndPoint
}

// IsClosed reports statuses where the transaction left the office.
func (s Status) IsClosed() bool {
	switch s {
	case StatusDelivered, StatusReturned, StatusArchived, StatusDeleted, StatusEndPoint:
		return true
	}
	return false
}

// IsInProcess reports statuses where registrars work on the documents.
func (s Status) IsInProcess() bool {
	switch s {
	case StatusRecording, StatusElaboration, StatusQualification,
		StatusRevision, StatusJuridic, StatusControl:
		return true
	}
	return false
}
