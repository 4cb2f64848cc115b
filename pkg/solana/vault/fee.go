package vault

// FeeFromArg widens the instruction fee argument to the stored fee field.
// Every uint32 value fits, so the conversion never loses information.
func FeeFromArg(fee uint32) int64 {
	return int64(fee)
}
