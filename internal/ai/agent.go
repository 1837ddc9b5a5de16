package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-fashion-store/internal/database"
	"go-fashion-store/internal/models"
	"go-fashion-store/internal/promo"
	"go-fashion-store/internal/voucher"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Deps are the read-only stat providers the assistant may query. No tool
// mutates anything - the assistant answers questions, the admin screens
// make changes.
type Deps struct {
	Promo    *promo.Manager
	Vouchers *voucher.Engine
}

// RunAgent answers an admin's question about store performance using
// Gemini tool-calling over the reporting queries.
func RunAgent(userMessage string, apiKey string, deps Deps) (string, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-2.0-flash-001")

	today := time.Now().Format("2006-01-02")

	systemPrompt := fmt.Sprintf(`SYSTEM: Today is %s. You are the analytics assistant for a fashion store back-office.

	RULES:
	1. REVENUE: If the user asks about sales or revenue, call 'get_sales_report' with a date range.
	2. FLASH SALES: For questions about a flash sale's performance (units sold, revenue, sold out products), call 'get_flash_sale_stats' with the sale ID. Call 'list_flash_sales' first if you only have a name.
	3. VOUCHERS: For voucher usage questions, call 'get_voucher_stats' with the voucher ID. Call 'list_vouchers' first if you only have a code.
	4. You can only READ data. Never promise to change prices, stock or campaigns.

	USER: %s`, today, userMessage)

	model.Tools = []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        "get_sales_report",
					Description: "Get total paid revenue and order count for a date range.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
							"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
						},
						Required: []string{"start_date", "end_date"},
					},
				},
				{
					Name:        "list_flash_sales",
					Description: "List all flash sale campaigns with their IDs, names and date windows.",
				},
				{
					Name:        "get_flash_sale_stats",
					Description: "Get units sold, revenue, average discount and sold-out product count for one flash sale.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"sale_id": {Type: genai.TypeInteger, Description: "ID of the flash sale"},
						},
						Required: []string{"sale_id"},
					},
				},
				{
					Name:        "list_vouchers",
					Description: "List all vouchers with their IDs, codes and usage caps.",
				},
				{
					Name:        "get_voucher_stats",
					Description: "Get redemption counts and total discount granted for one voucher.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"voucher_id": {Type: genai.TypeInteger, Description: "ID of the voucher"},
						},
						Required: []string{"voucher_id"},
					},
				},
			},
		},
	}

	session := model.StartChat()

	resp, err := session.SendMessage(ctx, genai.Text(systemPrompt))
	if err != nil {
		return "", err
	}

	// Up to a few tool-call rounds: list -> stats -> answer
	for round := 0; round < 4; round++ {
		funcCall, ok := firstFunctionCall(resp)
		if !ok {
			break
		}

		toolResp, err := dispatchTool(funcCall, deps)
		if err != nil {
			return "", err
		}

		resp, err = session.SendMessage(ctx, toolResp)
		if err != nil {
			return "", err
		}
	}

	return printResponse(resp), nil
}

func firstFunctionCall(resp *genai.GenerateContentResponse) (genai.FunctionCall, bool) {
	for _, part := range resp.Candidates[0].Content.Parts {
		if funcCall, ok := part.(genai.FunctionCall); ok {
			return funcCall, true
		}
	}
	return genai.FunctionCall{}, false
}

func dispatchTool(funcCall genai.FunctionCall, deps Deps) (genai.FunctionResponse, error) {
	switch funcCall.Name {
	case "get_sales_report":
		return executeSalesReport(funcCall)
	case "list_flash_sales":
		return executeListFlashSales(funcCall)
	case "get_flash_sale_stats":
		return executeFlashSaleStats(funcCall, deps)
	case "list_vouchers":
		return executeListVouchers(funcCall)
	case "get_voucher_stats":
		return executeVoucherStats(funcCall, deps)
	}
	return genai.FunctionResponse{
		Name:     funcCall.Name,
		Response: map[string]interface{}{"error": "unknown tool"},
	}, nil
}

func executeSalesReport(funcCall genai.FunctionCall) (genai.FunctionResponse, error) {
	args := funcCall.Args
	startStr, _ := args["start_date"].(string)
	endStr, _ := args["end_date"].(string)

	start, err1 := time.Parse("2006-01-02", startStr)
	end, err2 := time.Parse("2006-01-02", endStr)
	if err1 != nil || err2 != nil {
		return genai.FunctionResponse{
			Name:     funcCall.Name,
			Response: map[string]interface{}{"error": "dates must be in YYYY-MM-DD format"},
		}, nil
	}
	end = end.Add(23*time.Hour + 59*time.Minute)

	report, err := database.GetSalesReport(start, end)
	if err != nil {
		return genai.FunctionResponse{}, err
	}

	return genai.FunctionResponse{
		Name: funcCall.Name,
		Response: map[string]interface{}{
			"revenue":     report.TotalRevenue,
			"order_count": report.TotalOrders,
		},
	}, nil
}

func executeListFlashSales(funcCall genai.FunctionCall) (genai.FunctionResponse, error) {
	var sales []models.FlashSale
	if err := database.DB.Find(&sales).Error; err != nil {
		return genai.FunctionResponse{}, err
	}

	type simpleSale struct {
		ID        uint   `json:"id"`
		Name      string `json:"name"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		IsActive  bool   `json:"is_active"`
	}
	var list []simpleSale
	for _, s := range sales {
		list = append(list, simpleSale{
			ID:        s.ID,
			Name:      s.Name,
			StartDate: s.StartDate.Format("2006-01-02"),
			EndDate:   s.EndDate.Format("2006-01-02"),
			IsActive:  s.IsActive,
		})
	}
	jsonBytes, _ := json.Marshal(list)

	return genai.FunctionResponse{
		Name:     funcCall.Name,
		Response: map[string]interface{}{"flash_sales": string(jsonBytes)},
	}, nil
}

func executeFlashSaleStats(funcCall genai.FunctionCall, deps Deps) (genai.FunctionResponse, error) {
	saleID, ok := funcCall.Args["sale_id"].(float64)
	if !ok {
		return genai.FunctionResponse{
			Name:     funcCall.Name,
			Response: map[string]interface{}{"error": "sale_id is required"},
		}, nil
	}

	stats, err := deps.Promo.Stats(uint(saleID))
	if err != nil {
		return genai.FunctionResponse{
			Name:     funcCall.Name,
			Response: map[string]interface{}{"error": err.Error()},
		}, nil
	}

	return genai.FunctionResponse{
		Name: funcCall.Name,
		Response: map[string]interface{}{
			"total_sold":            stats.TotalSold,
			"total_revenue":         stats.TotalRevenue,
			"average_discount":      stats.AverageDiscount,
			"products_out_of_stock": stats.ProductsOutOfStock,
		},
	}, nil
}

func executeListVouchers(funcCall genai.FunctionCall) (genai.FunctionResponse, error) {
	var vouchers []models.Voucher
	if err := database.DB.Find(&vouchers).Error; err != nil {
		return genai.FunctionResponse{}, err
	}

	type simpleVoucher struct {
		ID        uint   `json:"id"`
		Code      string `json:"code"`
		Quantity  int    `json:"quantity"`
		UsedCount int    `json:"used_count"`
		IsActive  bool   `json:"is_active"`
	}
	var list []simpleVoucher
	for _, v := range vouchers {
		list = append(list, simpleVoucher{
			ID:        v.ID,
			Code:      v.Code,
			Quantity:  v.Quantity,
			UsedCount: v.UsedCount,
			IsActive:  v.IsActive,
		})
	}
	jsonBytes, _ := json.Marshal(list)

	return genai.FunctionResponse{
		Name:     funcCall.Name,
		Response: map[string]interface{}{"vouchers": string(jsonBytes)},
	}, nil
}

func executeVoucherStats(funcCall genai.FunctionCall, deps Deps) (genai.FunctionResponse, error) {
	voucherID, ok := funcCall.Args["voucher_id"].(float64)
	if !ok {
		return genai.FunctionResponse{
			Name:     funcCall.Name,
			Response: map[string]interface{}{"error": "voucher_id is required"},
		}, nil
	}

	stats, err := deps.Vouchers.Stats(uint(voucherID))
	if err != nil {
		return genai.FunctionResponse{
			Name:     funcCall.Name,
			Response: map[string]interface{}{"error": err.Error()},
		}, nil
	}

	return genai.FunctionResponse{
		Name: funcCall.Name,
		Response: map[string]interface{}{
			"code":           stats.Code,
			"used_count":     stats.UsedCount,
			"remaining":      stats.Remaining,
			"unique_users":   stats.UniqueUsers,
			"total_discount": stats.TotalDiscount,
		},
	}, nil
}

func printResponse(resp *genai.GenerateContentResponse) string {
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt)
		}
	}
	return "I completed the action."
}
