// Package importexport reads shipment rows from the CSV upload template
// and writes batch results back out as flat CSV rows. Column names are
// part of the template contract and must round-trip.
package importexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"freightquote/internal/model"
)

// ImportColumns are the recognized template headers, in template order.
// Matching is case-insensitive and ignores spaces and underscores.
var ImportColumns = []string{
	"rfq_number", "origin_zip", "destination_zip", "pallets", "gross_weight",
	"stackable", "reefer", "temperature", "food_grade", "accessorials",
	"origin_city", "origin_state", "origin_address", "origin_company",
	"origin_contact_name", "origin_contact_phone", "origin_contact_email",
	"destination_city", "destination_state", "destination_address", "destination_company",
	"destination_contact_name", "destination_contact_phone", "destination_contact_email",
	"pickup_date", "pickup_start_time", "pickup_end_time",
	"delivery_date", "delivery_start_time", "delivery_end_time",
	"declared_value",
}

// RowError reports a row that could not be parsed. The import keeps
// going; callers surface these as warnings.
type RowError struct {
	Row int
	Msg string
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %s", e.Row, e.Msg) }

// ParseShipments reads template CSV into shipment requests. Unknown
// columns are ignored. Rows missing required fields are skipped and
// reported; a header-only file yields zero shipments.
func ParseShipments(r io.Reader) ([]model.ShipmentRequest, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[canonical(h)] = i
	}
	for _, req := range []string{"origin_zip", "destination_zip", "pallets", "gross_weight"} {
		if _, ok := idx[req]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", req)
		}
	}

	var shipments []model.ShipmentRequest
	var rowErrs []RowError
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Msg: err.Error()})
			continue
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		pallets, err := strconv.Atoi(get("pallets"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Msg: "pallets is not a number"})
			continue
		}
		weight, err := strconv.ParseFloat(strings.ReplaceAll(get("gross_weight"), ",", ""), 64)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Msg: "gross_weight is not a number"})
			continue
		}
		s := model.ShipmentRequest{
			RFQNumber:      get("rfq_number"),
			OriginZip:      get("origin_zip"),
			DestinationZip: get("destination_zip"),
			Pallets:        pallets,
			GrossWeight:    weight,
			IsStackable:    truthy(get("stackable")),
			IsReefer:       truthy(get("reefer")),
			Temperature:    strings.ToUpper(get("temperature")),
			IsFoodGrade:    truthy(get("food_grade")),

			OriginCity:         get("origin_city"),
			OriginState:        get("origin_state"),
			OriginAddress:      get("origin_address"),
			OriginCompany:      get("origin_company"),
			OriginContactName:  get("origin_contact_name"),
			OriginContactPhone: get("origin_contact_phone"),
			OriginContactEmail: get("origin_contact_email"),

			DestinationCity:         get("destination_city"),
			DestinationState:        get("destination_state"),
			DestinationAddress:      get("destination_address"),
			DestinationCompany:      get("destination_company"),
			DestinationContactName:  get("destination_contact_name"),
			DestinationContactPhone: get("destination_contact_phone"),
			DestinationContactEmail: get("destination_contact_email"),

			PickupDate:        get("pickup_date"),
			PickupStartTime:   get("pickup_start_time"),
			PickupEndTime:     get("pickup_end_time"),
			DeliveryDate:      get("delivery_date"),
			DeliveryStartTime: get("delivery_start_time"),
			DeliveryEndTime:   get("delivery_end_time"),
		}
		if dv := get("declared_value"); dv != "" {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(dv, ",", ""), 64); err == nil {
				s.DeclaredValue = f
			}
		}
		if acc := get("accessorials"); acc != "" {
			for _, code := range strings.Split(acc, ";") {
				code = strings.TrimSpace(code)
				if code != "" {
					s.AccessorialCodes = append(s.AccessorialCodes, strings.ToUpper(code))
				}
			}
		}
		shipments = append(shipments, s)
	}
	return shipments, rowErrs, nil
}

func canonical(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "y", "yes", "true", "x":
		return true
	}
	return false
}

// exportHeader is the flat result row layout. Currency columns are
// formatted strings for spreadsheet compatibility.
var exportHeader = []string{
	"rfq_number", "origin_zip", "destination_zip", "pallets", "gross_weight",
	"route", "status", "error",
	"carrier", "carrier_code", "service_level", "transit_days", "quote_mode", "source_network",
	"carrier_rate", "customer_price", "profit", "margin_percent", "custom_price",
}

// WriteResults writes one row per quote, or one row per shipment when
// it produced no quotes (failed or empty result set).
func WriteResults(w io.Writer, results []model.ProcessingResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, res := range results {
		base := []string{
			res.Shipment.RFQNumber,
			res.Shipment.OriginZip,
			res.Shipment.DestinationZip,
			strconv.Itoa(res.Shipment.Pallets),
			strconv.FormatFloat(res.Shipment.GrossWeight, 'f', -1, 64),
			res.Route,
			res.Status,
			res.Error,
		}
		if len(res.Quotes) == 0 {
			row := append(append([]string{}, base...), "", "", "", "", "", "", "", "", "", "", "")
			if err := cw.Write(row); err != nil {
				return err
			}
			continue
		}
		for _, q := range res.Quotes {
			row := append(append([]string{}, base...),
				q.CarrierName,
				q.CarrierCode,
				q.ServiceLevelDescription,
				strconv.Itoa(q.TransitDays),
				q.QuoteMode,
				q.SourceNetwork,
				Currency(q.CarrierTotalRate),
				Currency(q.CustomerPrice),
				Currency(q.Profit),
				fmt.Sprintf("%.2f%%", q.AppliedMarginPercentage),
				boolCell(q.IsCustomPrice),
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Currency renders a dollar amount with thousands separators, matching
// the spreadsheet template ("$1,234.56").
func Currency(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "$" + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func boolCell(v bool) string {
	if v {
		return "yes"
	}
	return ""
}
