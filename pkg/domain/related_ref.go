package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// RelatedKind names the entity kinds a reminder may point at.
type RelatedKind string

const (
	RelatedRequest     RelatedKind = "request"
	RelatedPayment     RelatedKind = "payment"
	RelatedCertificate RelatedKind = "certificate"
)

// RelatedRef is a tagged reference to a request, payment, or certificate.
// Construct it through the per-kind helpers so the kind and ID cannot drift
// apart the way an untyped (id, type) column pair can.
type RelatedRef struct {
	kind RelatedKind
	id   uuid.UUID
}

func RefRequest(id RequestID) RelatedRef {
	return RelatedRef{kind: RelatedRequest, id: uuid.UUID(id)}
}

func RefPayment(id PaymentID) RelatedRef {
	return RelatedRef{kind: RelatedPayment, id: uuid.UUID(id)}
}

func RefCertificate(id CertificateID) RelatedRef {
	return RelatedRef{kind: RelatedCertificate, id: uuid.UUID(id)}
}

// ParseRelatedRef rebuilds a reference from its persisted (kind, id) columns.
func ParseRelatedRef(kind string, id uuid.UUID) (RelatedRef, error) {
	switch RelatedKind(kind) {
	case RelatedRequest, RelatedPayment, RelatedCertificate:
		return RelatedRef{kind: RelatedKind(kind), id: id}, nil
	default:
		return RelatedRef{}, fmt.Errorf("unknown related kind %q", kind)
	}
}

func (r RelatedRef) Kind() RelatedKind { return r.kind }
func (r RelatedRef) ID() uuid.UUID     { return r.id }
func (r RelatedRef) IsZero() bool      { return r.kind == "" }

func (r RelatedRef) String() string {
	return string(r.kind) + ":" + r.id.String()
}
