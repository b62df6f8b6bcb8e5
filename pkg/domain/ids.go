// Package domain holds strongly typed identifiers shared across certflow
// packages. Wrapping uuid.UUID per entity kind keeps a payment ID from ever
// being handed to a certificate store.
package domain

import "github.com/google/uuid"

type RequestID uuid.UUID

type ReportID uuid.UUID

type PaymentID uuid.UUID

type CertificateID uuid.UUID

type ReminderID uuid.UUID

type UserID uuid.UUID

func NewRequestID() RequestID         { return RequestID(uuid.New()) }
func NewReportID() ReportID           { return ReportID(uuid.New()) }
func NewPaymentID() PaymentID         { return PaymentID(uuid.New()) }
func NewCertificateID() CertificateID { return CertificateID(uuid.New()) }
func NewReminderID() ReminderID       { return ReminderID(uuid.New()) }
func NewUserID() UserID               { return UserID(uuid.New()) }

func (id RequestID) String() string     { return uuid.UUID(id).String() }
func (id ReportID) String() string      { return uuid.UUID(id).String() }
func (id PaymentID) String() string     { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id ReminderID) String() string    { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReminderID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	return RequestID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := uuid.Parse(s)
	return PaymentID(u), err
}

func ParseCertificateID(s string) (CertificateID, error) {
	u, err := uuid.Parse(s)
	return CertificateID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	return UserID(u), err
}
