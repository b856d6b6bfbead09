package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

// priceRegexp captures the first numeric amount in a display price.
var priceRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// SummaryService computes analytics over the records of a run.
type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

func (s *SummaryService) Generate(records []*models.Record) *models.SummaryReport {
	report := &models.SummaryReport{
		ByPropertyType: make(map[string]int),
		ByTransaction:  make(map[string]int),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalRecords = len(records)

	var total float64
	for _, r := range records {
		if _, ok := r.Get("id"); !ok {
			report.MissingIDs++
		}
		if pt := r.String("property_type"); pt != "" {
			report.ByPropertyType[pt]++
		}
		if tt := r.String("type"); tt != "" {
			report.ByTransaction[tt]++
		}

		price := ParsePrice(r.String("price"))
		if price <= 0 {
			continue
		}
		total += price
		if report.PricedRecords == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if report.PricedRecords == 0 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = r
		}
		report.PricedRecords++
	}

	if report.PricedRecords > 0 {
		report.AveragePrice = round2(total / float64(report.PricedRecords))
	}
	if report.MissingIDs > 0 {
		s.logger.Warn("[summary] %d records have no id", report.MissingIDs)
	}
	return report
}

// ParsePrice extracts the amount from a display price such as "£450,000" or
// "£1,250 pcm". Prices with no digits ("POA") parse as 0.
func ParsePrice(raw string) float64 {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return val
}

func (s *SummaryService) Print(r *models.SummaryReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  RIGHTMOVE SCRAPE SUMMARY\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Listing records : \033[1m%d\033[0m\n", r.TotalRecords)
	fmt.Printf("  With a price    : \033[1m%d\033[0m\n", r.PricedRecords)
	fmt.Println()

	fmt.Printf("\033[1;33m  Asking Prices\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PricedRecords > 0 {
		fmt.Printf("  Average : \033[1;32m£%.2f\033[0m\n", r.AveragePrice)
		fmt.Printf("  Minimum : \033[1;32m£%.2f\033[0m\n", r.MinPrice)
		fmt.Printf("  Maximum : \033[1;32m£%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	if r.MostExpensive != nil {
		fmt.Printf("\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.MostExpensive.String("title"), 50))
		fmt.Printf("  Price : \033[1;31m%s\033[0m\n", r.MostExpensive.String("price"))
		fmt.Println()
	}

	printCounts("Listings by Property Type", r.ByPropertyType, thin)
	printCounts("Listings by Transaction", r.ByTransaction, thin)

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(title string, counts map[string]int, thin string) {
	fmt.Printf("\033[1;33m  %s\033[0m\n", title)
	fmt.Printf("  %s\n", thin)
	if len(counts) == 0 {
		fmt.Printf("  No data\n\n")
		return
	}
	for _, kc := range sortedCounts(counts) {
		fmt.Printf("  %-30s %d\n", truncate(kc.key, 28), kc.count)
	}
	fmt.Println()
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders by count descending, then key.
func sortedCounts(counts map[string]int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
