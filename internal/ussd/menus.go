package ussd

import (
	"fmt"
	"strings"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
)

// Screens shown to traders. Swahili where the market staff wrote it.
const (
	msgRootMenu = "Karibu Mjasiriamali wa Soko la Mwenge! Chagua huduma:\n" +
		"1. Fanya Malipo\n" +
		"2. Omba eneo la biashara\n" +
		"3. Angalia Historia ya Malipo\n" +
		"4. Ripoti Tatizo"

	msgUserNotFound     = "User not found. Please register with the market office to continue."
	msgNoStalls         = "Currently, there are no open stalls available for rent."
	msgStallsError      = "Error fetching available stalls. Please try again later."
	msgInvalidStall     = "Invalid selection. Please select a valid stall number:"
	msgHistorySent      = "Your payment history has been sent to your phone via SMS."
	msgNoHistory        = "No payment history found for the last 3 days."
	msgHistoryError     = "Error fetching payment history. Please try again later."
	msgReportPrompt     = "Andika tatizo linalokusibu eneo lako la kazi (e.g Kubomolewa kibanda, Uchafu haujazolewa n.k):"
	msgReportBlank      = "Maelezo ya tatizo hayawezi kuwa tupu, tafadhali eleza tatizo linalokusibu:"
	msgReportReceived   = "Tatizo lako limepokelewa kikamilifu! Timu yetu italishughulikia hivi punde."
	msgReportError      = "Error reporting issue. Please try again later."
	msgConfirmOptions   = "Invalid option. Please select:\n1. Yes\n2. No"
	msgEnterPIN         = "Weka namba ya siri kuthibitisha malipo."
	msgPaymentCancelled = "Malipo yamebatilishwa. Asante kwa kutumia Mwenge Market services."
	msgPaymentDone      = "Malipo yamekamilika! Asante kwa kulipa ushuru. Kumbuka kulipa kesho tena."
	msgPaymentError     = "Error processing your payment. Please try again later."
	msgPINLocked        = "Too many invalid PIN attempts. Please start over."
	msgReserveError     = "Error reserving stall. Please try again later."
	msgInvalidInput     = "Invalid input. Please try again."
	msgTryLater         = "Service is temporarily unavailable. Please try again later."
)

// PredefinedStalls returns the fixed dues-payment stall labels: 001-A to 004-D
func PredefinedStalls() []string {
	labels := make([]string, 4)
	for i := range labels {
		labels[i] = fmt.Sprintf("%03d-%c", i+1, 'A'+i)
	}
	return labels
}

func predefinedStallMenu(labels []string) string {
	var b strings.Builder
	b.WriteString("Chagua eneo lako la biashara:")
	for i, label := range labels {
		fmt.Fprintf(&b, "\n%d. %s", i+1, label)
	}
	return b.String()
}

func availableStallMenu(numbers []string) string {
	var b strings.Builder
	b.WriteString("Available stalls for rent:")
	for i, n := range numbers {
		fmt.Fprintf(&b, "\n%d. Stall %s", i+1, n)
	}
	b.WriteString("\nSelect a stall by entering its number:")
	return b.String()
}

func confirmPaymentMenu(stall string, amount float64) string {
	return fmt.Sprintf("You have selected Stall %s. Unakaribia kulipa %.0f Tsh kwaajili ya ushuru. Unathibitisha?\n1. Yes\n2. No", stall, amount)
}

func pinRetryPrompt(attemptsLeft int) string {
	return fmt.Sprintf("Invalid PIN. Please try again (%d attempts left).", attemptsLeft)
}

func stallReserved(stall string) string {
	return fmt.Sprintf("Stall %s has been reserved for you. Details have been sent via SMS.", stall)
}

func stallTaken(stall string) string {
	return fmt.Sprintf("Sorry, stall %s is no longer available. Please try another stall.", stall)
}

// SMS bodies

func paymentHistorySMS(payments []*models.Payment) string {
	blocks := make([]string, len(payments))
	for i, p := range payments {
		blocks[i] = fmt.Sprintf("%d. Amount: %.0f Tsh\n   Method: %s\n   Transaction ID: %s\n   Status: %s",
			i+1, p.Amount, p.Method, p.TransactionID, p.Status)
	}
	return "Your payment history for the last 3 days:\n\n" + strings.Join(blocks, "\n\n")
}

func paymentConfirmationSMS(amount float64, stall, transactionID string) string {
	return fmt.Sprintf("Malipo yako ya %.0f Tsh kwa ajili ya Kibanda %s yamekamilika. Transaction ID: %s.\nKumbuka kulipa ushuru kesho tena.",
		amount, stall, transactionID)
}

func issueConfirmationSMS(description string) string {
	return fmt.Sprintf("Tatizo lako limepokelewa: \"%s\".\n\nTimu ya soko la Mwenge itakushughulikia hivi punde!\nAsante kwa kutumia huduma zetu!", description)
}

func stallReservedSMS(stall string) string {
	return fmt.Sprintf("Hongera! Kibanda %s kimehifadhiwa kwa ajili yako. Tafadhali fika ofisi ya soko kukamilisha usajili.", stall)
}
