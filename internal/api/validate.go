package api

import (
    "fmt"

    "freightgw/internal/carrier"
)

// validateQuoteRequest rejects malformed input before any network call is
// made. No silent coercion: a non-positive dimension fails the whole request.
func validateQuoteRequest(req *QuoteRequest, requireCompany bool) error {
    if requireCompany {
        if req.Company == "" {
            return fmt.Errorf("company is required")
        }
        if !carrier.Known(req.Company) {
            return fmt.Errorf("unsupported company: %s", req.Company)
        }
    }
    if req.FromCity == "" {
        return fmt.Errorf("fromCity is required")
    }
    if req.ToCity == "" {
        return fmt.Errorf("toCity is required")
    }
    if len(req.Cargo) == 0 {
        return fmt.Errorf("cargo must not be empty")
    }
    for i, it := range req.Cargo {
        if it.Length <= 0 || it.Width <= 0 || it.Height <= 0 {
            return fmt.Errorf("cargo[%d]: dimensions must be positive", i)
        }
        if it.Weight <= 0 {
            return fmt.Errorf("cargo[%d]: weight must be positive", i)
        }
        if it.Quantity < 0 {
            return fmt.Errorf("cargo[%d]: quantity must not be negative", i)
        }
    }
    return nil
}
