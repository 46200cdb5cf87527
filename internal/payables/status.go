package payables

// StatusFor derives the invoice status from the linked order's milestones.
// A nil order means the invoice is not attached.
func StatusFor(order *PaymentOrder) Status {
	switch {
	case order == nil:
		return StatusAttente
	case !order.ValidePourSignature:
		return StatusEtablissement
	case !order.RemisABanque:
		return StatusSignature
	case !order.CompteDebite:
		return StatusBanque
	default:
		return StatusPayee
	}
}

// Milestone names used for metrics and views.
const (
	MilestoneSignature = "signature"
	MilestoneBanque    = "banque"
	MilestoneDebit     = "debit"
)

// reachedMilestones lists the milestones set on next but not on prev.
func reachedMilestones(prev, next PaymentOrder) []string {
	var out []string
	if next.ValidePourSignature && !prev.ValidePourSignature {
		out = append(out, MilestoneSignature)
	}
	if next.RemisABanque && !prev.RemisABanque {
		out = append(out, MilestoneBanque)
	}
	if next.CompteDebite && !prev.CompteDebite {
		out = append(out, MilestoneDebit)
	}
	return out
}
