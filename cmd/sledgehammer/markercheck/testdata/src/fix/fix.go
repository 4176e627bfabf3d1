package fix

/* want "takes no options" */ //sledgehammer:trace all
func work() {
	println("work")
}
