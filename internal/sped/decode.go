package sped

import "spedflow/internal/domain"

// Minimum field counts below which a record is treated as truncated.
const (
	minPartnerFields  = 4
	minProductFields  = 7
	minDocumentFields = 9
	minItemFields     = 10
)

// DecodePartner maps a 0150 record. ok is false for truncated lines.
func DecodePartner(rec Record) (p domain.Partner, ok bool) {
	if !rec.Has(minPartnerFields) {
		return p, false
	}
	return domain.Partner{
		Code:        rec.At(1),
		Name:        rec.At(2),
		CountryCode: rec.At(3),
		CNPJ:        rec.At(4),
		CPF:         rec.At(5),
		IE:          rec.At(6),
		CityCode:    rec.At(7),
		IsActive:    true,
	}, true
}

// DecodeProduct maps a 0200 record.
func DecodeProduct(rec Record) (p domain.Product, ok bool) {
	if !rec.Has(minProductFields) {
		return p, false
	}
	return domain.Product{
		Code:        rec.At(1),
		Description: rec.At(2),
		Barcode:     rec.At(3),
		Unit:        rec.At(5),
		ItemType:    rec.At(6),
		NCM:         rec.At(7),
		ICMSRate:    rec.At(11),
		CEST:        rec.At(12),
		IsActive:    true,
	}, true
}

// DecodeDocument maps a C100 record.
func DecodeDocument(rec Record) (d domain.Document, ok bool) {
	if !rec.Has(minDocumentFields) {
		return d, false
	}
	return domain.Document{
		Operation:        rec.At(1),
		Issuer:           rec.At(2),
		PartnerCode:      rec.At(3),
		Model:            rec.At(4),
		Situation:        rec.At(5),
		Series:           rec.At(6),
		AccessKey:        rec.At(8),
		IssueDate:        rec.At(9),
		EntryDate:        rec.At(10),
		TotalValue:       rec.At(11),
		DiscountValue:    rec.At(13),
		MerchandiseValue: rec.At(15),
		ICMSBase:         rec.At(20),
		ICMSValue:        rec.At(21),
		IsActive:         true,
	}, true
}

// DecodeItem maps a C170 record.
func DecodeItem(rec Record) (i domain.LineItem, ok bool) {
	if !rec.Has(minItemFields) {
		return i, false
	}
	return domain.LineItem{
		ItemNumber:  rec.At(1),
		ItemCode:    rec.At(2),
		Description: rec.At(3),
		Quantity:    rec.At(4),
		Unit:        rec.At(5),
		Value:       rec.At(6),
		Discount:    rec.At(7),
		Movement:    rec.At(8),
		CSTICMS:     rec.At(9),
		CFOP:        rec.At(10),
		NatureCode:  rec.At(11),
		ICMSBase:    rec.At(12),
		ICMSRate:    rec.At(13),
		ICMSValue:   rec.At(14),
		IsActive:    true,
	}, true
}
