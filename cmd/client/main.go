package main

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Terminal client. Pins the server certificate: the connection is
// refused unless the presented certificate chains to the pinned file.
func main() {
	host := flag.String("host", "127.0.0.1", "server host")
	port := flag.String("port", "8000", "server port")
	cert := flag.String("cert", "server.crt", "pinned server certificate")
	flag.Parse()

	pem, err := os.ReadFile(*cert)
	if err != nil {
		fmt.Printf("Error: %q not found. Cannot verify server.\n", *cert)
		os.Exit(1)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		fmt.Println("Error: could not parse pinned certificate.")
		os.Exit(1)
	}

	addr := *host + ":" + *port
	fmt.Printf("Connecting to %s securely...\n", addr)
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		RootCAs:    pool,
		ServerName: *host,
	})
	if err != nil {
		fmt.Printf("Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	stdin := bufio.NewReader(os.Stdin)

	fmt.Print("Username: ")
	username, _ := stdin.ReadString('\n')
	fmt.Print("Password: ")
	password, _ := stdin.ReadString('\n')

	fmt.Fprintf(conn, "LOGIN %s %s\n", strings.TrimSpace(username), strings.TrimSpace(password))

	server := bufio.NewScanner(conn)
	if !server.Scan() {
		fmt.Println("Disconnected from server.")
		os.Exit(1)
	}
	response := server.Text()
	if !strings.HasPrefix(response, "AUTH_SUCCESS") {
		fmt.Printf("Login failed: %s\n", response)
		os.Exit(1)
	}

	fmt.Println("Login successful! Commands: /join <room>, /leave, /rooms, /subscribe <user>")

	// Receive loop: terminate immediately on forced logout or transport
	// error, no graceful unwind.
	go func() {
		for server.Scan() {
			line := server.Text()
			if strings.HasPrefix(line, "FORCED_LOGOUT") {
				fmt.Printf("\n[SYSTEM] %s\n", line)
				os.Exit(0)
			}
			fmt.Printf("\n%s\n", line)
		}
		fmt.Println("\n[SYSTEM] Disconnected from server.")
		os.Exit(0)
	}()

	for {
		msg, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		msg = strings.TrimRight(msg, "\n")
		if strings.EqualFold(msg, "/quit") {
			return
		}
		if msg == "" {
			continue
		}
		fmt.Fprintf(conn, "%s\n", msg)
	}
}
