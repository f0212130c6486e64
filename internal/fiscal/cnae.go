package fiscal

import "strconv"

// Manufacturing CNAE divisions (two leading digits) covered by the state incentive decree.
const (
	decreeDivisionMin = 10
	decreeDivisionMax = 33
)

// DecreeEligible reports whether a CNAE code falls in a manufacturing division.
func DecreeEligible(cnae string) bool {
	digits := make([]byte, 0, len(cnae))
	for i := 0; i < len(cnae); i++ {
		if cnae[i] >= '0' && cnae[i] <= '9' {
			digits = append(digits, cnae[i])
		}
	}
	if len(digits) < 2 {
		return false
	}
	div, err := strconv.Atoi(string(digits[:2]))
	if err != nil {
		return false
	}
	return div >= decreeDivisionMin && div <= decreeDivisionMax
}
