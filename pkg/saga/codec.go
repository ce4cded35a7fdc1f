package saga

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"
)

// Codec converts envelopes to and from their wire form. The JSON codec is
// the default; the Avro codec matches the schema the original producers
// registered (decimals as strings, ISO-8601 timestamps).
type Codec interface {
	Encode(event *OrderEvent) ([]byte, error)
	Decode(data []byte) (*OrderEvent, error)
	Name() string
}

type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(event *OrderEvent) ([]byte, error) {
	return json.Marshal(event)
}

func (JSONCodec) Decode(data []byte) (*OrderEvent, error) {
	var e OrderEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("saga: decode json envelope: %w", err)
	}
	return &e, nil
}

const avroSchema = `{
  "type": "record",
  "name": "OrderEventAvro",
  "namespace": "com.ordersaga.events",
  "fields": [
    {"name": "eventId", "type": "string"},
    {"name": "orderId", "type": "string"},
    {"name": "customerId", "type": "string"},
    {"name": "items", "type": {"type": "array", "items": {
      "type": "record", "name": "OrderItemAvro", "fields": [
        {"name": "productId", "type": "string"},
        {"name": "productName", "type": "string"},
        {"name": "quantity", "type": "int"},
        {"name": "price", "type": "string"}
      ]}}},
    {"name": "totalAmount", "type": "string"},
    {"name": "status", "type": {"type": "enum", "name": "OrderStatusAvro",
      "symbols": ["PLACED", "VALIDATED", "PAID", "COMPLETED", "FAILED", "PAYMENT_FAILED"]}},
    {"name": "reason", "type": ["null", "string"], "default": null},
    {"name": "createdAt", "type": "string"},
    {"name": "schemaVersion", "type": "int"},
    {"name": "source", "type": "string"}
  ]
}`

type AvroCodec struct {
	codec *goavro.Codec
}

func NewAvroCodec() (*AvroCodec, error) {
	c, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, fmt.Errorf("saga: parse avro schema: %w", err)
	}
	return &AvroCodec{codec: c}, nil
}

func (*AvroCodec) Name() string { return "avro" }

func (a *AvroCodec) Encode(event *OrderEvent) ([]byte, error) {
	items := make([]interface{}, 0, len(event.Items))
	for _, it := range event.Items {
		items = append(items, map[string]interface{}{
			"productId":   it.ProductID.String(),
			"productName": it.ProductName,
			"quantity":    int32(it.Quantity),
			"price":       it.Price.String(),
		})
	}

	var reason interface{}
	if event.Reason != "" {
		reason = map[string]interface{}{"string": event.Reason}
	}

	native := map[string]interface{}{
		"eventId":       event.EventID.String(),
		"orderId":       event.OrderID.String(),
		"customerId":    event.CustomerID.String(),
		"items":         items,
		"totalAmount":   event.TotalAmount.String(),
		"status":        string(event.Status),
		"reason":        reason,
		"createdAt":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"schemaVersion": int32(event.SchemaVersion),
		"source":        event.Source,
	}

	data, err := a.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("saga: encode avro envelope: %w", err)
	}
	return data, nil
}

func (a *AvroCodec) Decode(data []byte) (*OrderEvent, error) {
	native, _, err := a.codec.NativeFromBinary(data)
	if err != nil {
		return nil, fmt.Errorf("saga: decode avro envelope: %w", err)
	}
	record, ok := native.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("saga: avro envelope is not a record")
	}

	e := &OrderEvent{}
	if e.EventID, err = avroUUID(record, "eventId"); err != nil {
		return nil, err
	}
	if e.OrderID, err = avroUUID(record, "orderId"); err != nil {
		return nil, err
	}
	if e.CustomerID, err = avroUUID(record, "customerId"); err != nil {
		return nil, err
	}
	if e.TotalAmount, err = avroDecimal(record, "totalAmount"); err != nil {
		return nil, err
	}

	e.Status = Status(avroString(record, "status"))
	e.Source = avroString(record, "source")
	if v, ok := record["schemaVersion"].(int32); ok {
		e.SchemaVersion = int(v)
	}
	if u, ok := record["reason"].(map[string]interface{}); ok {
		if s, ok := u["string"].(string); ok {
			e.Reason = s
		}
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, avroString(record, "createdAt")); err != nil {
		return nil, fmt.Errorf("saga: decode avro createdAt: %w", err)
	}

	rawItems, _ := record["items"].([]interface{})
	for _, raw := range rawItems {
		ri, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("saga: avro item is not a record")
		}
		var it OrderItem
		if it.ProductID, err = avroUUID(ri, "productId"); err != nil {
			return nil, err
		}
		if it.Price, err = avroDecimal(ri, "price"); err != nil {
			return nil, err
		}
		it.ProductName = avroString(ri, "productName")
		if q, ok := ri["quantity"].(int32); ok {
			it.Quantity = int(q)
		}
		e.Items = append(e.Items, it)
	}

	return e, nil
}

func avroString(record map[string]interface{}, field string) string {
	s, _ := record[field].(string)
	return s
}

func avroUUID(record map[string]interface{}, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(avroString(record, field))
	if err != nil {
		return uuid.Nil, fmt.Errorf("saga: decode avro %s: %w", field, err)
	}
	return id, nil
}

func avroDecimal(record map[string]interface{}, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(avroString(record, field))
	if err != nil {
		return decimal.Zero, fmt.Errorf("saga: decode avro %s: %w", field, err)
	}
	return d, nil
}
