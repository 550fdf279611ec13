package main

const banner = `
 __      __                 _
 \ \    / /_ _ _ _ __ _ ___| |_ _
  \ \/\/ / _' | '_/ _' / -_) ' \ \
   \_/\_/\__,_|_| \__,_\___|_||_|_|

  :: Warden :: detection & remediation engine
`

func main() {
	Execute()
}
