package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// SheetRow is one line of a published base sheet. Cells arrive as strings
// or numbers depending on the exporter.
type SheetRow map[string]any

// SheetClient downloads a contract's base sheet, a JSON array of rows.
type SheetClient struct {
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
}

func NewSheetClient(timeout time.Duration, attempts uint) *SheetClient {
	if attempts == 0 {
		attempts = 1
	}
	return &SheetClient{
		Client:   &http.Client{Timeout: timeout},
		Attempts: attempts,
		Delay:    500 * time.Millisecond,
	}
}

func (sc *SheetClient) FetchRows(ctx context.Context, sheetURL string) ([]SheetRow, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, sheetURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create get request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			resp, err := sc.Client.Do(req)
			if err != nil {
				return fmt.Errorf("failed to send get request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				err := fmt.Errorf("sheet returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
				if resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read sheet: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(sc.Attempts),
		retry.Delay(sc.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Warn("Retrying base sheet download", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode sheet: %w", err)
	}

	// anything other than an array is treated as an empty sheet
	list, ok := payload.([]any)
	if !ok {
		return nil, nil
	}
	rows := make([]SheetRow, 0, len(list))
	for _, entry := range list {
		if obj, ok := entry.(map[string]any); ok {
			rows = append(rows, SheetRow(obj))
		}
	}
	return rows, nil
}

// FetchItems downloads the sheet and maps every row to an item.
func (sc *SheetClient) FetchItems(ctx context.Context, sheetURL string) ([]models.Item, error) {
	rows, err := sc.FetchRows(ctx, sheetURL)
	if err != nil {
		return nil, err
	}
	items := make([]models.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Item())
	}
	return items, nil
}

// Item maps the row to an item. Numeric cells that don't parse count as zero.
func (r SheetRow) Item() models.Item {
	sheetType := strings.ToUpper(r.text("sheetType"))
	if sheetType != models.SheetServices && sheetType != models.SheetEquipments {
		sheetType = models.SheetServices
	}
	return models.Item{
		OrderNumber:     int(r.number("orderNumber").IntPart()),
		MacroItem:       r.text("macroItem"),
		SheetType:       sheetType,
		IsOriginal:      r["isOriginal"] == true || r["isOriginal"] == "TRUE",
		ItemNumber:      r.text("itemNumber"),
		CompositionCode: r.text("compositionCode"),
		Base:            r.text("base"),
		Description:     r.text("description"),
		Unit:            r.text("unit"),
		ContractedQty:   r.number("contractedQty"),
		AdminPrices: models.PriceBreakdown{
			UnitLabor:    r.number("admin_unitLabor"),
			UnitMaterial: r.number("admin_unitMaterial"),
		},
		CompanyPrices: models.PriceBreakdown{
			UnitLabor:    r.number("company_unitLabor"),
			UnitMaterial: r.number("company_unitMaterial"),
		},
		Observations: r.text("observations"),
	}
}

func (r SheetRow) text(key string) string {
	return strings.TrimSpace(cast.ToString(r[key]))
}

func (r SheetRow) number(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case nil:
		return decimal.Zero
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
		return decimal.Zero
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
		return decimal.Zero
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return decimal.Zero
		}
		return decimal.NewFromFloat(f)
	}
}
